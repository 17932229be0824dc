package model

import (
	"fmt"
	"strings"
	"time"
)

// QuotedMessage carries the reply metadata of an inbound message.
// Only used for ticket-id extraction; never persisted on its own.
type QuotedMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// Message is an inbound support message, validated once at the ingress
// boundary. Immutable once received.
type Message struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Sender     string         `json:"sender"`
	ContextKey string         `json:"context_key"` // conversation/group identifier
	Timestamp  time.Time      `json:"timestamp"`
	Quoted     *QuotedMessage `json:"quoted_message,omitempty"`
}

// Validate checks the fields required by the pipeline. Downstream code
// relies on this running at ingress and does not re-check.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("message id is required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("message text is required")
	}
	if strings.TrimSpace(m.Sender) == "" {
		return fmt.Errorf("message sender is required")
	}
	if strings.TrimSpace(m.ContextKey) == "" {
		return fmt.Errorf("message context_key is required")
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("message timestamp is required")
	}
	return nil
}

// Excerpt returns the first maxLen characters of the message text,
// used for incident records and ticket descriptions. Cuts on rune
// boundaries so accented text stays valid UTF-8.
func (m Message) Excerpt(maxLen int) string {
	if len(m.Text) <= maxLen {
		return m.Text
	}
	runes := []rune(m.Text)
	if len(runes) <= maxLen {
		return m.Text
	}
	return string(runes[:maxLen])
}
