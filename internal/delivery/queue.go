// Package delivery guarantees eventual ticket creation under backend
// outages: a synchronous attempt first, then a durable Redis-list retry
// queue drained by a background processor.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mesadesk.app/triage/common/logger"
	"mesadesk.app/triage/internal/events"
	"mesadesk.app/triage/internal/kv"
	"mesadesk.app/triage/internal/model"
	"mesadesk.app/triage/internal/ticketing"
)

const (
	queueKey        = "pending_tickets"
	statusKeyPrefix = "ticket_status:"
	queueIDPrefix   = "queue_"

	// DefaultMaxAttempts before a queue item is failed permanently.
	DefaultMaxAttempts = 10

	// statusTTL keeps status records around long enough for polling
	// without accumulating forever.
	statusTTL = 7 * 24 * time.Hour
)

// ErrStatusNotFound is returned by Status for unknown or expired ids.
var ErrStatusNotFound = errors.New("queue status not found")

// IsQueueRef reports whether an id is a queue id rather than a backend
// ticket id.
func IsQueueRef(id string) bool {
	return strings.HasPrefix(id, queueIDPrefix)
}

type Options struct {
	MaxAttempts int
	Now         func() time.Time
}

// Queue is the durable delivery queue. Deliver attempts the backend
// synchronously; callers that get an error enqueue themselves — the queue
// never retries the initial attempt.
type Queue struct {
	store       kv.Store
	backend     ticketing.Backend
	publisher   events.Publisher
	maxAttempts int
	now         func() time.Time
}

func NewQueue(store kv.Store, backend ticketing.Backend, publisher events.Publisher, opts Options) *Queue {
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Queue{
		store:       store,
		backend:     backend,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		now:         now,
	}
}

// Deliver attempts synchronous ticket creation. On success it emits the
// ticket-created event and returns the backend ticket id.
func (q *Queue) Deliver(ctx context.Context, payload model.TicketRequest) (string, error) {
	ticketID, err := q.backend.CreateTicket(ctx, payload)
	if err != nil {
		return "", err
	}
	q.emitCreated(ctx, ticketID, payload)
	return ticketID, nil
}

// Enqueue persists the ticket request for background delivery and returns a
// queue id, prefixed distinctly from backend ticket ids.
func (q *Queue) Enqueue(ctx context.Context, payload model.TicketRequest) (string, error) {
	queueID := queueIDPrefix + uuid.New().String()[:8]
	now := q.now()

	item := model.QueueItem{
		ID:          queueID,
		Payload:     payload,
		Attempts:    0,
		MaxAttempts: q.maxAttempts,
		CreatedAt:   now,
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("encoding queue item: %w", err)
	}
	if err := q.store.ListPush(ctx, queueKey, string(raw)); err != nil {
		return "", fmt.Errorf("enqueueing ticket: %w", err)
	}

	q.setStatus(ctx, queueID, model.QueueStatus{
		State:       model.QueueStateQueued,
		CreatedAt:   now,
		LastUpdated: now,
	})

	slog.InfoContext(ctx, "ticket queued for delivery",
		"queue_id", queueID,
		"subject", payload.Subject)
	return queueID, nil
}

// Status returns the externally visible state of a queue item.
func (q *Queue) Status(ctx context.Context, queueID string) (model.QueueStatus, error) {
	raw, err := q.store.GetWithTTL(ctx, statusKeyPrefix+queueID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return model.QueueStatus{}, ErrStatusNotFound
		}
		return model.QueueStatus{}, fmt.Errorf("loading status %s: %w", queueID, err)
	}
	var status model.QueueStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return model.QueueStatus{}, fmt.Errorf("decoding status %s: %w", queueID, err)
	}
	return status, nil
}

// Length returns the number of pending queue items.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.store.ListLength(ctx, queueKey)
}

// ProcessOnce attempts every item that was pending when the pass started
// and returns how many tickets were created. Per-item failures increment
// attempts and requeue (or fail permanently at max attempts); they never
// abort the pass. Requeued items wait for the next pass: the pass is
// bounded by the initial queue length so a down backend cannot burn
// through all attempts in one pass.
func (q *Queue) ProcessOnce(ctx context.Context) (int, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "triage.delivery.queue"})
	processed := 0

	pending, err := q.store.ListLength(ctx, queueKey)
	if err != nil {
		return 0, fmt.Errorf("reading queue length: %w", err)
	}

	for i := int64(0); i < pending; i++ {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		raw, err := q.store.ListPop(ctx, queueKey)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				break
			}
			return processed, fmt.Errorf("popping queue: %w", err)
		}

		var item model.QueueItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			// Undecodable item: drop it rather than poison the queue.
			slog.ErrorContext(ctx, "dropping undecodable queue item", "error", err)
			continue
		}

		if q.processItem(ctx, item) {
			processed++
		}
	}

	if processed > 0 {
		slog.InfoContext(ctx, "queue pass completed", "processed", processed)
	}
	return processed, nil
}

func (q *Queue) processItem(ctx context.Context, item model.QueueItem) bool {
	ctx = logger.WithLogFields(ctx, logger.LogFields{QueueID: logger.Ptr(item.ID)})

	ticketID, err := q.backend.CreateTicket(ctx, item.Payload)
	if err == nil {
		q.setStatus(ctx, item.ID, model.QueueStatus{
			State:       model.QueueStateCompleted,
			Attempts:    item.Attempts + 1,
			TicketID:    ticketID,
			CreatedAt:   item.CreatedAt,
			LastUpdated: q.now(),
		})
		q.emitCreated(ctx, ticketID, item.Payload)
		slog.InfoContext(ctx, "queued ticket delivered", "ticket_id", ticketID)
		return true
	}

	item.Attempts++
	item.LastError = err.Error()

	if item.Attempts < item.MaxAttempts {
		raw, marshalErr := json.Marshal(item)
		if marshalErr == nil {
			if pushErr := q.store.ListPush(ctx, queueKey, string(raw)); pushErr != nil {
				slog.ErrorContext(ctx, "requeue failed, item lost from queue", "error", pushErr)
			}
		}
		q.setStatus(ctx, item.ID, model.QueueStatus{
			State:       model.QueueStateRetrying,
			Attempts:    item.Attempts,
			Error:       item.LastError,
			CreatedAt:   item.CreatedAt,
			LastUpdated: q.now(),
		})
		slog.WarnContext(ctx, "ticket delivery failed, will retry",
			"attempts", item.Attempts,
			"error", err)
		return false
	}

	q.setStatus(ctx, item.ID, model.QueueStatus{
		State:       model.QueueStateFailed,
		Attempts:    item.Attempts,
		Error:       item.LastError,
		CreatedAt:   item.CreatedAt,
		LastUpdated: q.now(),
	})
	slog.ErrorContext(ctx, "ticket delivery failed permanently",
		"attempts", item.Attempts,
		"error", err)
	return false
}

func (q *Queue) setStatus(ctx context.Context, queueID string, status model.QueueStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		slog.ErrorContext(ctx, "encoding queue status failed", "error", err)
		return
	}
	if err := q.store.SetWithTTL(ctx, statusKeyPrefix+queueID, string(raw), statusTTL); err != nil {
		slog.ErrorContext(ctx, "persisting queue status failed", "error", err)
	}
}

func (q *Queue) emitCreated(ctx context.Context, ticketID string, payload model.TicketRequest) {
	if q.publisher == nil {
		return
	}
	event := events.TicketCreated{
		TicketID:     ticketID,
		ContextKey:   payload.ContextKey,
		TicketNumber: ticketID,
		Summary:      payload.Subject,
		Priority:     payload.Priority,
		Timestamp:    q.now(),
	}
	if err := q.publisher.TicketCreated(ctx, event); err != nil {
		slog.ErrorContext(ctx, "publishing ticket-created event failed", "error", err)
	}
}
