package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/dto"
	"mesadesk.app/triage/internal/model"
	"mesadesk.app/triage/internal/pipeline"
)

// MessagePipeline is the slice of the pipeline the handler needs.
type MessagePipeline interface {
	Handle(ctx context.Context, msg model.Message) (pipeline.Result, error)
}

type MessageHandler struct {
	pipeline MessagePipeline
}

func NewMessageHandler(pipeline MessagePipeline) *MessageHandler {
	return &MessageHandler{pipeline: pipeline}
}

func (h *MessageHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid message request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := model.Message{
		ID:         req.ID,
		Text:       req.Text,
		Sender:     req.Sender,
		ContextKey: req.ContextKey,
		Timestamp:  time.Now(),
	}
	if req.Timestamp != nil {
		msg.Timestamp = *req.Timestamp
	}
	if req.Quoted != nil {
		msg.Quoted = &model.QuotedMessage{
			ID:     req.Quoted.ID,
			Text:   req.Quoted.Text,
			Sender: req.Quoted.Sender,
		}
	}
	if err := msg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.pipeline.Handle(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "message processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, toIngestResponse(result))
}

func toIngestResponse(result pipeline.Result) dto.IngestMessageResponse {
	resp := dto.IngestMessageResponse{
		Outcome:        string(result.Outcome),
		TicketID:       result.TicketID,
		QueueID:        result.QueueID,
		IsIncident:     result.Consensus.Incident(),
		Confidence:     result.Consensus.Confidence,
		ConsensusKind:  string(result.Consensus.Kind),
		RequiresReview: result.Consensus.RequiresReview,
	}
	if result.Consensus.Category != nil {
		resp.Category = string(*result.Consensus.Category)
	}
	if result.Consensus.Priority != nil {
		resp.Priority = string(*result.Consensus.Priority)
	}
	return resp
}
