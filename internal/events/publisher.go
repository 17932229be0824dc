// Package events publishes pipeline lifecycle events for external
// collaborators (transport layer, dashboards) over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mesadesk.app/triage/internal/model"
)

const (
	ChannelClassificationCompleted = "classification:completed"
	ChannelTicketCreated           = "tickets:created"
)

// ClassificationCompleted is emitted once per processed message.
type ClassificationCompleted struct {
	MessageID  string                `json:"message_id"`
	ContextKey string                `json:"context_key"`
	Consensus  model.ConsensusResult `json:"consensus_result"`
	Timestamp  time.Time             `json:"timestamp"`
}

// TicketCreated is emitted exactly once per successfully created ticket,
// whether delivery was synchronous or drained from the retry queue.
type TicketCreated struct {
	TicketID     string         `json:"ticket_id"`
	ContextKey   string         `json:"context_key"`
	TicketNumber string         `json:"ticket_number"`
	Summary      string         `json:"summary"`
	Priority     model.Priority `json:"priority"`
	Timestamp    time.Time      `json:"timestamp"`
}

type Publisher interface {
	ClassificationCompleted(ctx context.Context, event ClassificationCompleted) error
	TicketCreated(ctx context.Context, event TicketCreated) error
}

type redisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) ClassificationCompleted(ctx context.Context, event ClassificationCompleted) error {
	return p.publish(ctx, ChannelClassificationCompleted, event)
}

func (p *redisPublisher) TicketCreated(ctx context.Context, event TicketCreated) error {
	return p.publish(ctx, ChannelTicketCreated, event)
}

func (p *redisPublisher) publish(ctx context.Context, channel string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", channel, err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing %s event: %w", channel, err)
	}
	slog.DebugContext(ctx, "event published", "channel", channel)
	return nil
}
