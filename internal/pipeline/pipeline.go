// Package pipeline runs the full triage flow for one inbound message:
// classify with two providers, resolve consensus, deduplicate against
// active incidents, then deliver a ticket or queue it durably.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mesadesk.app/triage/common/logger"
	"mesadesk.app/triage/internal/classify"
	"mesadesk.app/triage/internal/consensus"
	"mesadesk.app/triage/internal/delivery"
	"mesadesk.app/triage/internal/events"
	"mesadesk.app/triage/internal/incident"
	"mesadesk.app/triage/internal/model"
	"mesadesk.app/triage/internal/store"
	"mesadesk.app/triage/internal/ticketing"
)

// Outcome tells the caller what happened to the message.
type Outcome string

const (
	// OutcomeNoIncident means consensus decided this is not a support
	// incident. Nothing was created.
	OutcomeNoIncident Outcome = "no_incident"

	// OutcomeDeduplicated means the message was appended to an
	// existing active incident's thread.
	OutcomeDeduplicated Outcome = "deduplicated"

	// OutcomeTicketCreated means a new backend ticket was created
	// synchronously.
	OutcomeTicketCreated Outcome = "ticket_created"

	// OutcomeQueued means the backend was unavailable and the ticket
	// was queued for background delivery.
	OutcomeQueued Outcome = "queued"
)

// Result is the pipeline's answer for one message. For incidents, exactly
// one of TicketID or QueueID is set.
type Result struct {
	Outcome   Outcome
	TicketID  string
	QueueID   string
	Consensus model.ConsensusResult
}

type Options struct {
	DepartmentID string
	Now          func() time.Time
}

// Pipeline is the orchestrator. Classification, consensus, incident
// tracking, delivery, eventing, and audit are all composed here;
// the stages themselves stay independent.
type Pipeline struct {
	gateway      *classify.Gateway
	tracker      *incident.Tracker
	queue        *delivery.Queue
	backend      ticketing.Backend
	publisher    events.Publisher
	audit        store.AuditStore
	departmentID string
	now          func() time.Time
}

func New(
	gateway *classify.Gateway,
	tracker *incident.Tracker,
	queue *delivery.Queue,
	backend ticketing.Backend,
	publisher events.Publisher,
	audit store.AuditStore,
	opts Options,
) *Pipeline {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		gateway:      gateway,
		tracker:      tracker,
		queue:        queue,
		backend:      backend,
		publisher:    publisher,
		audit:        audit,
		departmentID: opts.DepartmentID,
		now:          now,
	}
}

// Handle processes one validated message end to end. Incident-positive
// messages always come back with a ticket id or a queue id; a hard error
// is returned only when even durable queueing failed.
func (p *Pipeline) Handle(ctx context.Context, msg model.Message) (Result, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:  logger.Ptr(msg.ID),
		ContextKey: logger.Ptr(msg.ContextKey),
		Component:  "triage.pipeline",
	})

	opinionA, opinionB := p.gateway.ClassifyPair(ctx, msg.Text, map[string]any{
		"sender":      msg.Sender,
		"context_key": msg.ContextKey,
	})
	res := consensus.Resolve(opinionA, opinionB)

	if res.Kind == model.ConsensusErrorBoth {
		// Both providers down. Triage bias: treat as an incident with
		// floor confidence rather than dropping the report.
		fallback := classify.ConservativeDefault()
		res.IsIncident = fallback.IsIncident
		res.Confidence = fallback.Confidence
		res.Category = fallback.Category
		res.Priority = fallback.Priority
		res.Metadata = fallback.Metadata
		res.RequiresReview = true
		slog.WarnContext(ctx, "all classifiers failed, using conservative default")
	}

	p.publishClassification(ctx, msg, res)

	if !res.Incident() {
		p.recordAudit(ctx, msg, res, opinionA, opinionB, nil, nil)
		slog.InfoContext(ctx, "message classified as non-incident",
			"consensus_kind", res.Kind,
			"confidence", res.Confidence)
		return Result{Outcome: OutcomeNoIncident, Consensus: res}, nil
	}

	if ref := p.deduplicate(ctx, msg); ref != "" {
		result := Result{Outcome: OutcomeDeduplicated, Consensus: res}
		if delivery.IsQueueRef(ref) {
			result.QueueID = ref
			p.recordAudit(ctx, msg, res, opinionA, opinionB, nil, &ref)
		} else {
			result.TicketID = ref
			p.recordAudit(ctx, msg, res, opinionA, opinionB, &ref, nil)
		}
		return result, nil
	}

	result, err := p.createTicket(ctx, msg, res)
	if err != nil {
		return Result{}, err
	}

	var ticketID, queueID *string
	if result.TicketID != "" {
		ticketID = &result.TicketID
	}
	if result.QueueID != "" {
		queueID = &result.QueueID
	}
	p.recordAudit(ctx, msg, res, opinionA, opinionB, ticketID, queueID)
	return result, nil
}

// deduplicate returns the matched active incident's ticket or queue id,
// or "" for a new incident. A claim on the context key serializes racing
// messages; the loser re-checks once for the winner's registration.
func (p *Pipeline) deduplicate(ctx context.Context, msg model.Message) string {
	ticketID, err := p.tracker.CheckExisting(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "incident lookup failed, treating as new", "error", err)
		return ""
	}
	if ticketID != "" {
		if err := p.tracker.AppendToThread(ctx, ticketID, msg.ID, msg.Excerpt(200)); err != nil {
			slog.ErrorContext(ctx, "appending to incident thread failed",
				"error", err,
				"ticket_id", ticketID)
		}
		slog.InfoContext(ctx, "message deduplicated into active incident",
			"ticket_id", ticketID)
		return ticketID
	}

	won, err := p.tracker.Claim(ctx, msg.ContextKey, msg.ID)
	if err != nil {
		slog.ErrorContext(ctx, "incident claim failed, proceeding as new", "error", err)
		return ""
	}
	if won {
		return ""
	}

	// Lost the claim: a concurrent message is registering an incident for
	// this context key. Re-check for it before creating a duplicate.
	ticketID, err = p.tracker.CheckExisting(ctx, msg)
	if err != nil || ticketID == "" {
		return ""
	}
	if err := p.tracker.AppendToThread(ctx, ticketID, msg.ID, msg.Excerpt(200)); err != nil {
		slog.ErrorContext(ctx, "appending to incident thread failed",
			"error", err,
			"ticket_id", ticketID)
	}
	return ticketID
}

func (p *Pipeline) createTicket(ctx context.Context, msg model.Message, res model.ConsensusResult) (Result, error) {
	req := p.buildTicketRequest(ctx, msg, res)

	ticketID, err := p.queue.Deliver(ctx, req)
	if err == nil {
		if regErr := p.tracker.Register(ctx, msg, ticketID, res); regErr != nil {
			slog.ErrorContext(ctx, "incident registration failed",
				"error", regErr,
				"ticket_id", ticketID)
		}
		return Result{
			Outcome:   OutcomeTicketCreated,
			TicketID:  ticketID,
			Consensus: res,
		}, nil
	}

	if !errors.Is(err, ticketing.ErrBackendUnavailable) {
		return Result{}, fmt.Errorf("delivering ticket: %w", err)
	}

	queueID, qErr := p.queue.Enqueue(ctx, req)
	if qErr != nil {
		return Result{}, fmt.Errorf("backend unavailable and enqueue failed: %w", qErr)
	}
	// The incident opens under the queue id so follow-up messages during
	// the outage join it instead of queueing duplicate tickets.
	if regErr := p.tracker.Register(ctx, msg, queueID, res); regErr != nil {
		slog.ErrorContext(ctx, "incident registration failed",
			"error", regErr,
			"queue_id", queueID)
	}
	slog.WarnContext(ctx, "backend unavailable, ticket queued",
		"queue_id", queueID,
		"error", err)
	return Result{
		Outcome:   OutcomeQueued,
		QueueID:   queueID,
		Consensus: res,
	}, nil
}

func (p *Pipeline) buildTicketRequest(ctx context.Context, msg model.Message, res model.ConsensusResult) model.TicketRequest {
	priority := model.PriorityNormal
	if res.Priority != nil {
		priority = *res.Priority
	}
	classification := string(model.CategoryGeneralInquiry)
	if res.Category != nil {
		classification = string(*res.Category)
	}

	subject := "Incidente reportado"
	if summary, ok := res.Metadata["summary"].(string); ok && summary != "" {
		subject = logger.Truncate(summary, 120)
	} else if msg.Text != "" {
		subject = msg.Excerpt(120)
	}

	contactRef := p.resolveContact(ctx, msg)

	return model.TicketRequest{
		Subject:        subject,
		Description:    fmt.Sprintf("Mensaje de %s:\n\n%s", msg.Sender, msg.Text),
		Priority:       priority,
		Classification: classification,
		ContactRef:     contactRef,
		DepartmentRef:  p.departmentID,
		MessageID:      msg.ID,
		ContextKey:     msg.ContextKey,
		Sender:         msg.Sender,
	}
}

// resolveContact is best effort. Delivery must not depend on the contact
// lookup, so failures fall back to an empty ref.
func (p *Pipeline) resolveContact(ctx context.Context, msg model.Message) string {
	email := msg.Sender
	contactID, err := p.backend.GetOrCreateContact(ctx, email, msg.Sender)
	if err != nil {
		slog.WarnContext(ctx, "contact resolution failed", "error", err)
		return ""
	}
	return contactID
}

func (p *Pipeline) publishClassification(ctx context.Context, msg model.Message, res model.ConsensusResult) {
	if p.publisher == nil {
		return
	}
	event := events.ClassificationCompleted{
		MessageID:  msg.ID,
		ContextKey: msg.ContextKey,
		Consensus:  res,
		Timestamp:  p.now(),
	}
	if err := p.publisher.ClassificationCompleted(ctx, event); err != nil {
		slog.ErrorContext(ctx, "publishing classification event failed", "error", err)
	}
}

func (p *Pipeline) recordAudit(
	ctx context.Context,
	msg model.Message,
	res model.ConsensusResult,
	opinionA, opinionB model.ClassificationOpinion,
	ticketID, queueID *string,
) {
	if p.audit == nil {
		return
	}
	record := &store.AuditRecord{
		MessageID:      msg.ID,
		ContextKey:     msg.ContextKey,
		ConsensusKind:  res.Kind,
		IsIncident:     res.IsIncident,
		Confidence:     res.Confidence,
		Category:       res.Category,
		Priority:       res.Priority,
		RequiresReview: res.RequiresReview,
		OpinionA:       opinionA,
		OpinionB:       opinionB,
		LatencyMs:      (opinionA.Latency + opinionB.Latency).Milliseconds(),
		CostUSD:        opinionA.CostUSD + opinionB.CostUSD,
		TicketID:       ticketID,
		QueueID:        queueID,
	}
	if _, err := p.audit.Insert(ctx, record); err != nil {
		slog.ErrorContext(ctx, "writing classification audit failed", "error", err)
	}
}
