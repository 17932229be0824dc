package dto

import "time"

type QuotedMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text,omitempty"`
	Sender string `json:"sender" binding:"required"`
}

type IngestMessageRequest struct {
	ID         string         `json:"id" binding:"required"`
	Text       string         `json:"text" binding:"required"`
	Sender     string         `json:"sender" binding:"required"`
	ContextKey string         `json:"context_key" binding:"required"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	Quoted     *QuotedMessage `json:"quoted_message,omitempty"`
}

type IngestMessageResponse struct {
	Outcome        string  `json:"outcome"`
	TicketID       string  `json:"ticket_id,omitempty"`
	QueueID        string  `json:"queue_id,omitempty"`
	IsIncident     bool    `json:"is_incident"`
	Confidence     float64 `json:"confidence"`
	Category       string  `json:"category,omitempty"`
	Priority       string  `json:"priority,omitempty"`
	ConsensusKind  string  `json:"consensus_kind"`
	RequiresReview bool    `json:"requires_review"`
}

type QueueStatusResponse struct {
	QueueID     string    `json:"queue_id"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	TicketID    string    `json:"ticket_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

type ReviewRecord struct {
	ID             int64     `json:"id"`
	MessageID      string    `json:"message_id"`
	ContextKey     string    `json:"context_key"`
	ConsensusKind  string    `json:"consensus_kind"`
	IsIncident     *bool     `json:"is_incident"`
	Confidence     float64   `json:"confidence"`
	Category       string    `json:"category,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	RequiresReview bool      `json:"requires_review"`
	TicketID       string    `json:"ticket_id,omitempty"`
	QueueID        string    `json:"queue_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ThreadResponse struct {
	TicketID         string    `json:"ticket_id"`
	ContextKey       string    `json:"context_key"`
	Participant      string    `json:"participant"`
	Category         string    `json:"category,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	ThreadMessageIDs []string  `json:"thread_message_ids"`
	Excerpt          string    `json:"excerpt"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdate       time.Time `json:"last_update"`
}
