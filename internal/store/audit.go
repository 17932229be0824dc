// Package store persists the classification audit trail. Every consensus
// decision is recorded with both raw opinions so disagreements and provider
// drift can be reviewed after the fact.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mesadesk.app/triage/common/id"
	"mesadesk.app/triage/internal/model"
)

var ErrNotFound = errors.New("store: not found")

// AuditRecord is one persisted consensus decision.
type AuditRecord struct {
	ID             int64
	MessageID      string
	ContextKey     string
	ConsensusKind  model.ConsensusKind
	IsIncident     *bool
	Confidence     float64
	Category       *model.Category
	Priority       *model.Priority
	RequiresReview bool
	OpinionA       model.ClassificationOpinion
	OpinionB       model.ClassificationOpinion
	LatencyMs      int64
	CostUSD        float64
	TicketID       *string
	QueueID        *string
	CreatedAt      time.Time
}

type AuditStore interface {
	Insert(ctx context.Context, record *AuditRecord) (*AuditRecord, error)
	GetByID(ctx context.Context, id int64) (*AuditRecord, error)
	ListReviewByContextKey(ctx context.Context, contextKey string, limit int32) ([]AuditRecord, error)
	ListRequiringReview(ctx context.Context, limit int32) ([]AuditRecord, error)
}

type auditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) AuditStore {
	return &auditStore{pool: pool}
}

const auditColumns = `id, message_id, context_key, consensus_kind, is_incident,
	confidence, category, priority, requires_review, opinion_a, opinion_b,
	latency_ms, cost_usd, ticket_id, queue_id, created_at`

func (s *auditStore) Insert(ctx context.Context, record *AuditRecord) (*AuditRecord, error) {
	if record.ID == 0 {
		record.ID = id.New()
	}

	opinionA, err := json.Marshal(record.OpinionA)
	if err != nil {
		return nil, fmt.Errorf("encoding opinion a: %w", err)
	}
	opinionB, err := json.Marshal(record.OpinionB)
	if err != nil {
		return nil, fmt.Errorf("encoding opinion b: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO classification_audit (
			id, message_id, context_key, consensus_kind, is_incident,
			confidence, category, priority, requires_review, opinion_a,
			opinion_b, latency_ms, cost_usd, ticket_id, queue_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+auditColumns,
		record.ID, record.MessageID, record.ContextKey, record.ConsensusKind,
		record.IsIncident, record.Confidence, record.Category, record.Priority,
		record.RequiresReview, opinionA, opinionB, record.LatencyMs,
		record.CostUSD, record.TicketID, record.QueueID,
	)
	return scanAuditRecord(row)
}

func (s *auditStore) GetByID(ctx context.Context, recordID int64) (*AuditRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+auditColumns+`
		FROM classification_audit
		WHERE id = $1`, recordID)
	record, err := scanAuditRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListReviewByContextKey narrows the review queue to one context. Records
// that never needed review are excluded, matching ListRequiringReview.
func (s *auditStore) ListReviewByContextKey(ctx context.Context, contextKey string, limit int32) ([]AuditRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+auditColumns+`
		FROM classification_audit
		WHERE context_key = $1 AND requires_review
		ORDER BY created_at DESC
		LIMIT $2`, contextKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRecords(rows)
}

func (s *auditStore) ListRequiringReview(ctx context.Context, limit int32) ([]AuditRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+auditColumns+`
		FROM classification_audit
		WHERE requires_review
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRecords(rows)
}

func scanAuditRecord(row pgx.Row) (*AuditRecord, error) {
	var record AuditRecord
	var opinionA, opinionB []byte
	err := row.Scan(
		&record.ID, &record.MessageID, &record.ContextKey,
		&record.ConsensusKind, &record.IsIncident, &record.Confidence,
		&record.Category, &record.Priority, &record.RequiresReview,
		&opinionA, &opinionB, &record.LatencyMs, &record.CostUSD,
		&record.TicketID, &record.QueueID, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(opinionA, &record.OpinionA); err != nil {
		return nil, fmt.Errorf("decoding opinion a: %w", err)
	}
	if err := json.Unmarshal(opinionB, &record.OpinionB); err != nil {
		return nil, fmt.Errorf("decoding opinion b: %w", err)
	}
	return &record, nil
}

func scanAuditRecords(rows pgx.Rows) ([]AuditRecord, error) {
	var records []AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
