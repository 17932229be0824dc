package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/dto"
	"mesadesk.app/triage/internal/store"
)

const defaultReviewLimit = 50

// ReviewHandler serves the manual-review queue backed by the
// classification audit log.
type ReviewHandler struct {
	audit store.AuditStore
}

func NewReviewHandler(audit store.AuditStore) *ReviewHandler {
	return &ReviewHandler{audit: audit}
}

func (h *ReviewHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit := int32(defaultReviewLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = int32(parsed)
	}

	var (
		records []store.AuditRecord
		err     error
	)
	if contextKey := c.Query("context_key"); contextKey != "" {
		records, err = h.audit.ListReviewByContextKey(ctx, contextKey, limit)
	} else {
		records, err = h.audit.ListRequiringReview(ctx, limit)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to list audit records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reviews"})
		return
	}

	resp := make([]dto.ReviewRecord, 0, len(records))
	for _, record := range records {
		resp = append(resp, toReviewRecord(record))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func toReviewRecord(record store.AuditRecord) dto.ReviewRecord {
	r := dto.ReviewRecord{
		ID:             record.ID,
		MessageID:      record.MessageID,
		ContextKey:     record.ContextKey,
		ConsensusKind:  string(record.ConsensusKind),
		Confidence:     record.Confidence,
		RequiresReview: record.RequiresReview,
		CreatedAt:      record.CreatedAt,
	}
	if record.IsIncident != nil {
		r.IsIncident = record.IsIncident
	}
	if record.Category != nil {
		r.Category = string(*record.Category)
	}
	if record.Priority != nil {
		r.Priority = string(*record.Priority)
	}
	if record.TicketID != nil {
		r.TicketID = *record.TicketID
	}
	if record.QueueID != nil {
		r.QueueID = *record.QueueID
	}
	return r
}
