// Package ticketing defines the backend the triage engine delivers tickets
// to, plus an HTTP implementation against a Zoho-Desk-shaped API. Token
// lifecycle is external: callers inject a TokenProvider.
package ticketing

import (
	"context"
	"errors"

	"mesadesk.app/triage/internal/model"
)

// ErrBackendUnavailable marks a ticketing backend failure. The pipeline
// recovers by enqueueing for durable delivery; callers see a "queued"
// status, never this error.
var ErrBackendUnavailable = errors.New("ticketing backend unavailable")

// Backend is the external ticketing system consumed by the engine.
type Backend interface {
	CreateTicket(ctx context.Context, req model.TicketRequest) (string, error)
	GetTicketStatus(ctx context.Context, ticketID string) (string, error)
	ListDepartments(ctx context.Context) ([]model.Department, error)
	GetOrCreateContact(ctx context.Context, email, name string) (string, error)
}

// TokenProvider supplies a valid bearer token per request. Refresh and
// expiry tracking live behind this interface.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token, used in
// development and tests.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
