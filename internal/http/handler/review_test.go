package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mesadesk.app/triage/internal/http/handler"
	"mesadesk.app/triage/internal/model"
	"mesadesk.app/triage/internal/store"
)

var _ = Describe("ReviewHandler", func() {
	var (
		router *gin.Engine
		audit  *mockAuditStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		audit = &mockAuditStore{}
		h := handler.NewReviewHandler(audit)
		router.GET("/reviews", h.List)
	})

	get := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/reviews"+query, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("lists records requiring review by default", func() {
		incident := true
		audit.listRequiringReviewFn = func(_ context.Context, limit int32) ([]store.AuditRecord, error) {
			Expect(limit).To(Equal(int32(50)))
			return []store.AuditRecord{{
				ID:             7,
				MessageID:      "m-1",
				ContextKey:     "group-a",
				ConsensusKind:  model.ConsensusDisagreement,
				IsIncident:     &incident,
				Confidence:     0.765,
				RequiresReview: true,
			}}, nil
		}

		w := get("")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp struct {
			Data []map[string]any `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data).To(HaveLen(1))
		Expect(resp.Data[0]["consensus_kind"]).To(Equal("disagreement"))
		Expect(resp.Data[0]["confidence"]).To(Equal(0.765))
	})

	It("keeps the review filter when narrowing by context key", func() {
		var gotKey string
		audit.listReviewByContextKeyFn = func(_ context.Context, contextKey string, _ int32) ([]store.AuditRecord, error) {
			gotKey = contextKey
			return []store.AuditRecord{{
				ID:             8,
				MessageID:      "m-2",
				ContextKey:     contextKey,
				ConsensusKind:  model.ConsensusErrorPartial,
				Confidence:     0.6,
				RequiresReview: true,
			}}, nil
		}

		w := get("?context_key=group-a")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotKey).To(Equal("group-a"))
		var resp struct {
			Data []map[string]any `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data).To(HaveLen(1))
		Expect(resp.Data[0]["requires_review"]).To(Equal(true))
	})

	It("rejects a non-numeric limit", func() {
		w := get("?limit=abc")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
