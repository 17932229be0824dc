package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/delivery"
	"mesadesk.app/triage/internal/http/dto"
	"mesadesk.app/triage/internal/model"
)

type QueueStatusReader interface {
	Status(ctx context.Context, queueID string) (model.QueueStatus, error)
}

type QueueHandler struct {
	queue QueueStatusReader
}

func NewQueueHandler(queue QueueStatusReader) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	queueID := c.Param("id")

	status, err := h.queue.Status(ctx, queueID)
	if err != nil {
		if errors.Is(err, delivery.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "queue item not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load queue status", "error", err, "queue_id", queueID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load queue status"})
		return
	}

	c.JSON(http.StatusOK, dto.QueueStatusResponse{
		QueueID:     queueID,
		Status:      string(status.State),
		Attempts:    status.Attempts,
		TicketID:    status.TicketID,
		Error:       status.Error,
		CreatedAt:   status.CreatedAt,
		LastUpdated: status.LastUpdated,
	})
}
