package delivery_test

import (
	"context"

	"mesadesk.app/triage/internal/events"
	"mesadesk.app/triage/internal/model"
)

type mockBackend struct {
	createTicketFn func(ctx context.Context, req model.TicketRequest) (string, error)
}

func (m *mockBackend) CreateTicket(ctx context.Context, req model.TicketRequest) (string, error) {
	if m.createTicketFn != nil {
		return m.createTicketFn(ctx, req)
	}
	return "", nil
}

func (m *mockBackend) GetTicketStatus(context.Context, string) (string, error) {
	return "Open", nil
}

func (m *mockBackend) ListDepartments(context.Context) ([]model.Department, error) {
	return nil, nil
}

func (m *mockBackend) GetOrCreateContact(context.Context, string, string) (string, error) {
	return "", nil
}

type mockPublisher struct {
	ticketCreated []events.TicketCreated
}

func (m *mockPublisher) ClassificationCompleted(context.Context, events.ClassificationCompleted) error {
	return nil
}

func (m *mockPublisher) TicketCreated(_ context.Context, event events.TicketCreated) error {
	m.ticketCreated = append(m.ticketCreated, event)
	return nil
}
