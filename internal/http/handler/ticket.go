package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/dto"
	"mesadesk.app/triage/internal/model"
)

type ThreadReader interface {
	ThreadSummary(ctx context.Context, ticketID string) (*model.Incident, error)
}

type TicketHandler struct {
	tracker ThreadReader
}

func NewTicketHandler(tracker ThreadReader) *TicketHandler {
	return &TicketHandler{tracker: tracker}
}

func (h *TicketHandler) GetThread(c *gin.Context) {
	ctx := c.Request.Context()
	ticketID := c.Param("id")

	inc, err := h.tracker.ThreadSummary(ctx, ticketID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load incident thread", "error", err, "ticket_id", ticketID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread"})
		return
	}
	if inc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active incident for ticket"})
		return
	}

	resp := dto.ThreadResponse{
		TicketID:         inc.TicketID,
		ContextKey:       inc.ContextKey,
		Participant:      inc.Participant,
		ThreadMessageIDs: inc.ThreadMessageIDs,
		Excerpt:          inc.Excerpt,
		CreatedAt:        inc.CreatedAt,
		LastUpdate:       inc.LastUpdate,
	}
	if inc.Category != nil {
		resp.Category = string(*inc.Category)
	}
	if inc.Priority != nil {
		resp.Priority = string(*inc.Priority)
	}

	c.JSON(http.StatusOK, resp)
}
