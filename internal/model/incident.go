package model

import "time"

// Incident is one tracked real-world problem, associated with exactly one
// backend ticket. Lives in the KV store under
// "incident:active:<context_key>:<ticket_id>" with a sliding TTL refreshed
// on every thread update. Destroyed by TTL expiry, never deleted explicitly.
type Incident struct {
	TicketID         string    `json:"ticket_id"`
	ContextKey       string    `json:"context_key"`
	Participant      string    `json:"participant"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdate       time.Time `json:"last_update"`
	Category         *Category `json:"category,omitempty"`
	Priority         *Priority `json:"priority,omitempty"`
	ThreadMessageIDs []string  `json:"thread_message_ids"`
	Excerpt          string    `json:"excerpt"`
}
