package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mesadesk.app/triage/internal/delivery"
	"mesadesk.app/triage/internal/http/handler"
	"mesadesk.app/triage/internal/model"
)

var _ = Describe("QueueHandler", func() {
	var (
		router *gin.Engine
		queue  *mockQueue
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		queue = &mockQueue{}
		h := handler.NewQueueHandler(queue)
		router.GET("/queue/:id", h.GetStatus)
	})

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/queue/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns the queue item status", func() {
		now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		queue.statusFn = func(_ context.Context, queueID string) (model.QueueStatus, error) {
			Expect(queueID).To(Equal("queue_ab12cd34"))
			return model.QueueStatus{
				State:       model.QueueStateRetrying,
				Attempts:    3,
				Error:       "ticketing backend unavailable",
				CreatedAt:   now,
				LastUpdated: now.Add(2 * time.Minute),
			}, nil
		}

		w := get("queue_ab12cd34")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["queue_id"]).To(Equal("queue_ab12cd34"))
		Expect(resp["status"]).To(Equal("retrying"))
		Expect(resp["attempts"]).To(Equal(float64(3)))
	})

	It("returns 404 for unknown queue ids", func() {
		queue.statusFn = func(context.Context, string) (model.QueueStatus, error) {
			return model.QueueStatus{}, delivery.ErrStatusNotFound
		}

		w := get("queue_missing")

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("TicketHandler", func() {
	var (
		router  *gin.Engine
		tracker *mockTracker
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		tracker = &mockTracker{}
		h := handler.NewTicketHandler(tracker)
		router.GET("/tickets/:id/thread", h.GetThread)
	})

	It("returns the incident thread", func() {
		category := model.CategoryTechnical
		tracker.threadSummaryFn = func(_ context.Context, ticketID string) (*model.Incident, error) {
			Expect(ticketID).To(Equal("12345"))
			return &model.Incident{
				TicketID:         "12345",
				ContextKey:       "group-a",
				Participant:      "+5215550001",
				Category:         &category,
				ThreadMessageIDs: []string{"m-1", "m-2"},
				Excerpt:          "sigue sin funcionar",
			}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/tickets/12345/thread", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["ticket_id"]).To(Equal("12345"))
		Expect(resp["category"]).To(Equal("technical"))
		Expect(resp["thread_message_ids"]).To(HaveLen(2))
	})

	It("returns 404 when the incident has expired", func() {
		req := httptest.NewRequest(http.MethodGet, "/tickets/404/thread", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
