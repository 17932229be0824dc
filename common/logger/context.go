package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (message_id, ticket_id, etc.) is automatically included in all log statements.
type LogFields struct {
	MessageID  *string // Inbound message ID
	ContextKey *string // Conversation/group identifier
	TicketID   *string // Backend ticket ID
	QueueID    *string // Delivery queue item ID
	Provider   *string // Classification provider name
	Component  string  // Component name (OTel semantic convention style, e.g., "triage.pipeline")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.ContextKey != nil {
		result.ContextKey = new.ContextKey
	}
	if new.TicketID != nil {
		result.TicketID = new.TicketID
	}
	if new.QueueID != nil {
		result.QueueID = new.QueueID
	}
	if new.Provider != nil {
		result.Provider = new.Provider
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{TicketID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like message bodies or error messages.
// Cuts on rune boundaries so multi-byte text stays valid UTF-8.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
