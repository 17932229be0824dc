package pipeline_test

import (
	"context"

	"mesadesk.app/triage/internal/classify"
	"mesadesk.app/triage/internal/events"
	"mesadesk.app/triage/internal/model"
	"mesadesk.app/triage/internal/store"
)

type fakeProvider struct {
	name       string
	classifyFn func(ctx context.Context, prompt string) (*classify.RawClassification, *classify.Usage, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Classify(ctx context.Context, prompt string) (*classify.RawClassification, *classify.Usage, error) {
	return f.classifyFn(ctx, prompt)
}

type mockBackend struct {
	createTicketFn func(ctx context.Context, req model.TicketRequest) (string, error)
	createdTickets []model.TicketRequest
}

func (m *mockBackend) CreateTicket(ctx context.Context, req model.TicketRequest) (string, error) {
	m.createdTickets = append(m.createdTickets, req)
	if m.createTicketFn != nil {
		return m.createTicketFn(ctx, req)
	}
	return "12345", nil
}

func (m *mockBackend) GetTicketStatus(context.Context, string) (string, error) {
	return "Open", nil
}

func (m *mockBackend) ListDepartments(context.Context) ([]model.Department, error) {
	return []model.Department{{ID: "dep-1", Name: "Soporte"}}, nil
}

func (m *mockBackend) GetOrCreateContact(context.Context, string, string) (string, error) {
	return "contact-1", nil
}

type mockPublisher struct {
	classifications []events.ClassificationCompleted
	ticketCreated   []events.TicketCreated
}

func (m *mockPublisher) ClassificationCompleted(_ context.Context, event events.ClassificationCompleted) error {
	m.classifications = append(m.classifications, event)
	return nil
}

func (m *mockPublisher) TicketCreated(_ context.Context, event events.TicketCreated) error {
	m.ticketCreated = append(m.ticketCreated, event)
	return nil
}

type mockAuditStore struct {
	records []*store.AuditRecord
}

func (m *mockAuditStore) Insert(_ context.Context, record *store.AuditRecord) (*store.AuditRecord, error) {
	m.records = append(m.records, record)
	return record, nil
}

func (m *mockAuditStore) GetByID(context.Context, int64) (*store.AuditRecord, error) {
	return nil, store.ErrNotFound
}

func (m *mockAuditStore) ListReviewByContextKey(context.Context, string, int32) ([]store.AuditRecord, error) {
	return nil, nil
}

func (m *mockAuditStore) ListRequiringReview(context.Context, int32) ([]store.AuditRecord, error) {
	return nil, nil
}
