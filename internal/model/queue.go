package model

import "time"

type QueueState string

const (
	QueueStateQueued    QueueState = "queued"
	QueueStateRetrying  QueueState = "retrying"
	QueueStateCompleted QueueState = "completed"
	QueueStateFailed    QueueState = "failed"
)

// QueueItem is one pending ticket creation in the durable delivery queue.
// Mutated only by the background processor; the single-active-run guard
// ensures no two passes touch the same dequeued item.
type QueueItem struct {
	ID          string        `json:"id"`
	Payload     TicketRequest `json:"ticket_payload"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	CreatedAt   time.Time     `json:"created_at"`
	LastError   string        `json:"last_error,omitempty"`
}

// QueueStatus is the externally visible state of a queue item,
// stored separately from the item for O(1) lookup.
type QueueStatus struct {
	State       QueueState `json:"status"`
	Attempts    int        `json:"attempts"`
	TicketID    string     `json:"ticket_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
}
