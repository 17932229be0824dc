package classify

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mesadesk.app/triage/internal/model"
)

// ErrProviderUnavailable covers network errors, timeouts, and 5xx responses
// from a classification provider. Recovered locally via the fallback chain;
// never surfaced to pipeline callers.
var ErrProviderUnavailable = errors.New("classification provider unavailable")

// ErrMalformedResponse covers non-JSON or schema-violating provider output.
// Treated identically to ErrProviderUnavailable by the gateway.
var ErrMalformedResponse = errors.New("malformed provider response")

// RawClassification is the wire schema every provider must return.
type RawClassification struct {
	IsSupportIncident bool          `json:"is_support_incident" jsonschema:"required"`
	Confidence        float64       `json:"confidence" jsonschema:"required"`
	Category          string        `json:"category" jsonschema:"required,enum=technical,enum=billing,enum=operational,enum=urgent,enum=general_inquiry,enum=not_support"`
	Urgency           string        `json:"urgency" jsonschema:"required,enum=low,enum=medium,enum=high,enum=critical"`
	Summary           string        `json:"summary" jsonschema:"required"`
	RequiresFollowup  bool          `json:"requires_followup" jsonschema:"required"`
	SuggestedResponse string        `json:"suggested_response" jsonschema:"required"`
	ExtractedInfo     ExtractedInfo `json:"extracted_info" jsonschema:"required"`
}

type ExtractedInfo struct {
	UserType         string `json:"user_type" jsonschema:"required,enum=customer,enum=potential_customer,enum=internal,enum=unknown"`
	ProductMentioned string `json:"product_mentioned"`
	ErrorCode        string `json:"error_code"`
	ContactInfo      string `json:"contact_info"`
}

// Usage reports provider token consumption for cost accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Provider is one pluggable classification backend.
type Provider interface {
	Name() string
	Classify(ctx context.Context, prompt string) (*RawClassification, *Usage, error)
}

// rateLimited wraps a Provider with a token-bucket limiter so paid APIs are
// not hammered during message bursts.
type rateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// RateLimited wraps p with a per-second request limit. A limit of zero
// returns p unchanged.
func RateLimited(p Provider, perSecond float64) Provider {
	if perSecond <= 0 {
		return p
	}
	return &rateLimited{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (r *rateLimited) Name() string {
	return r.inner.Name()
}

func (r *rateLimited) Classify(ctx context.Context, prompt string) (*RawClassification, *Usage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	return r.inner.Classify(ctx, prompt)
}

// normalize converts a raw provider payload into the internal opinion shape.
func normalize(raw *RawClassification, usage *Usage, provider string, latency time.Duration, costUSD float64) model.ClassificationOpinion {
	isIncident := raw.IsSupportIncident

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	metadata := map[string]any{
		"summary":            raw.Summary,
		"requires_followup":  raw.RequiresFollowup,
		"suggested_response": raw.SuggestedResponse,
		"extracted_info":     raw.ExtractedInfo,
	}
	if usage != nil {
		metadata["prompt_tokens"] = usage.PromptTokens
		metadata["completion_tokens"] = usage.CompletionTokens
	}

	opinion := model.ClassificationOpinion{
		IsIncident: &isIncident,
		Confidence: confidence,
		Metadata:   metadata,
		Provider:   provider,
		Latency:    latency,
		CostUSD:    costUSD,
	}

	if cat := normalizeCategory(raw.Category); cat != "" {
		opinion.Category = &cat
	}
	if pri := normalizeUrgency(raw.Urgency); pri != "" {
		opinion.Priority = &pri
	}

	return opinion
}

func normalizeCategory(s string) model.Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "technical":
		return model.CategoryTechnical
	case "billing":
		return model.CategoryBilling
	case "operational":
		return model.CategoryOperational
	case "urgent":
		return model.CategoryUrgent
	case "general_inquiry", "general", "complaint", "compliment", "not_support":
		return model.CategoryGeneralInquiry
	default:
		return ""
	}
}

func normalizeUrgency(s string) model.Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return model.PriorityLow
	case "medium":
		return model.PriorityNormal
	case "high":
		return model.PriorityHigh
	case "critical":
		return model.PriorityUrgent
	default:
		return ""
	}
}

// errorOpinion marks a provider failure: nil IsIncident, zero confidence.
func errorOpinion(provider string, latency time.Duration, err error) model.ClassificationOpinion {
	return model.ClassificationOpinion{
		IsIncident: nil,
		Confidence: 0,
		Provider:   provider,
		Latency:    latency,
		Metadata:   map[string]any{"error": err.Error()},
	}
}
