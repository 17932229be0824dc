package handler_test

import (
	"context"

	"mesadesk.app/triage/internal/model"
	"mesadesk.app/triage/internal/pipeline"
	"mesadesk.app/triage/internal/store"
)

type mockPipeline struct {
	handleFn func(ctx context.Context, msg model.Message) (pipeline.Result, error)
}

func (m *mockPipeline) Handle(ctx context.Context, msg model.Message) (pipeline.Result, error) {
	if m.handleFn != nil {
		return m.handleFn(ctx, msg)
	}
	return pipeline.Result{}, nil
}

type mockQueue struct {
	statusFn func(ctx context.Context, queueID string) (model.QueueStatus, error)
}

func (m *mockQueue) Status(ctx context.Context, queueID string) (model.QueueStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, queueID)
	}
	return model.QueueStatus{}, nil
}

type mockAuditStore struct {
	insertFn                 func(ctx context.Context, record *store.AuditRecord) (*store.AuditRecord, error)
	listReviewByContextKeyFn func(ctx context.Context, contextKey string, limit int32) ([]store.AuditRecord, error)
	listRequiringReviewFn    func(ctx context.Context, limit int32) ([]store.AuditRecord, error)
}

func (m *mockAuditStore) Insert(ctx context.Context, record *store.AuditRecord) (*store.AuditRecord, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, record)
	}
	return record, nil
}

func (m *mockAuditStore) GetByID(context.Context, int64) (*store.AuditRecord, error) {
	return nil, store.ErrNotFound
}

func (m *mockAuditStore) ListReviewByContextKey(ctx context.Context, contextKey string, limit int32) ([]store.AuditRecord, error) {
	if m.listReviewByContextKeyFn != nil {
		return m.listReviewByContextKeyFn(ctx, contextKey, limit)
	}
	return nil, nil
}

func (m *mockAuditStore) ListRequiringReview(ctx context.Context, limit int32) ([]store.AuditRecord, error) {
	if m.listRequiringReviewFn != nil {
		return m.listRequiringReviewFn(ctx, limit)
	}
	return nil, nil
}

type mockTracker struct {
	threadSummaryFn func(ctx context.Context, ticketID string) (*model.Incident, error)
}

func (m *mockTracker) ThreadSummary(ctx context.Context, ticketID string) (*model.Incident, error) {
	if m.threadSummaryFn != nil {
		return m.threadSummaryFn(ctx, ticketID)
	}
	return nil, nil
}
