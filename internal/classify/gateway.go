package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mesadesk.app/triage/common/logger"
	"mesadesk.app/triage/internal/model"
)

// DefaultProviderName labels the conservative default opinion emitted when
// every provider in the chain failed.
const DefaultProviderName = "default"

type GatewayOptions struct {
	// CallTimeout bounds each provider call. A timeout counts as a
	// provider failure. Zero means 30s.
	CallTimeout time.Duration
}

// Gateway calls classification providers in an ordered fallback chain and
// normalizes heterogeneous provider output into ClassificationOpinion.
type Gateway struct {
	providers   []Provider
	callTimeout time.Duration
}

// NewGateway builds a gateway over an ordered provider chain
// (primary first). At least one provider is required for the chain path;
// with zero providers every classification is the conservative default.
func NewGateway(providers []Provider, opts GatewayOptions) *Gateway {
	timeout := opts.CallTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		providers:   providers,
		callTimeout: timeout,
	}
}

// Classify runs the fallback chain: the first provider that returns a valid
// payload wins. If every provider fails it returns the conservative
// default, biased toward triage because a missed incident is costlier than
// a needless manual review. Never returns an error.
func (g *Gateway) Classify(ctx context.Context, text string, msgContext map[string]any) model.ClassificationOpinion {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "triage.classify.gateway"})
	prompt := BuildPrompt(text, msgContext)

	for _, provider := range g.providers {
		opinion := g.callOne(ctx, provider, prompt)
		if !opinion.Errored() {
			return opinion
		}
		slog.WarnContext(ctx, "provider failed, trying next in chain",
			"provider", provider.Name())
	}

	slog.ErrorContext(ctx, "all providers failed, using conservative default")
	return ConservativeDefault()
}

// ClassifyPair produces the two independent opinions the consensus resolver
// merges. With two or more providers the first two run concurrently, each
// under its own timeout; a late or failed provider yields a null opinion
// rather than blocking the pipeline. With a single provider, the keyword
// baseline supplies the second opinion.
func (g *Gateway) ClassifyPair(ctx context.Context, text string, msgContext map[string]any) (model.ClassificationOpinion, model.ClassificationOpinion) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "triage.classify.gateway"})
	prompt := BuildPrompt(text, msgContext)

	switch len(g.providers) {
	case 0:
		return errorOpinion(DefaultProviderName, 0, ErrProviderUnavailable), ClassifyKeywords(text)
	case 1:
		return g.callOne(ctx, g.providers[0], prompt), ClassifyKeywords(text)
	}

	var a, b model.ClassificationOpinion
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a = g.callOne(groupCtx, g.providers[0], prompt)
		return nil
	})
	group.Go(func() error {
		b = g.callOne(groupCtx, g.providers[1], prompt)
		return nil
	})
	_ = group.Wait() // goroutines only record opinions, they never error

	return a, b
}

func (g *Gateway) callOne(ctx context.Context, provider Provider, prompt string) model.ClassificationOpinion {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	start := time.Now()
	raw, usage, err := provider.Classify(callCtx, prompt)
	latency := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "provider call failed",
			"provider", provider.Name(),
			"duration_ms", latency.Milliseconds(),
			"error", err)
		return errorOpinion(provider.Name(), latency, err)
	}

	return normalize(raw, usage, provider.Name(), latency, estimateCost(provider.Name(), usage))
}

// ConservativeDefault is the opinion used when no provider could be
// consulted: flagged as an incident at low confidence so the message lands
// in manual triage instead of being silently dropped.
func ConservativeDefault() model.ClassificationOpinion {
	isIncident := true
	category := model.CategoryGeneralInquiry
	priority := model.PriorityNormal
	return model.ClassificationOpinion{
		IsIncident: &isIncident,
		Confidence: 0.1,
		Category:   &category,
		Priority:   &priority,
		Metadata: map[string]any{
			"summary":            "Mensaje requiere revisión manual",
			"requires_followup":  true,
			"suggested_response": "Hola, hemos recibido tu mensaje y será revisado por nuestro equipo de soporte. Te responderemos a la brevedad.",
		},
		Provider: DefaultProviderName,
	}
}

// Rough per-million-token prices for the models we run. Only used for the
// cost_usd audit field, not for billing.
var costPerMTok = map[string][2]float64{
	"openai/gpt-4o-mini":                {0.15, 0.60},
	"anthropic/claude-3-5-haiku-latest": {0.80, 4.00},
}

func estimateCost(providerName string, usage *Usage) float64 {
	if usage == nil {
		return 0
	}
	for prefix, rates := range costPerMTok {
		if strings.HasPrefix(providerName, prefix) {
			in := float64(usage.PromptTokens) / 1e6 * rates[0]
			out := float64(usage.CompletionTokens) / 1e6 * rates[1]
			return in + out
		}
	}
	return 0
}
