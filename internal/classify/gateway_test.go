package classify_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mesadesk.app/triage/internal/classify"
)

type fakeProvider struct {
	name       string
	classifyFn func(ctx context.Context, prompt string) (*classify.RawClassification, *classify.Usage, error)
	calls      atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Classify(ctx context.Context, prompt string) (*classify.RawClassification, *classify.Usage, error) {
	f.calls.Add(1)
	if f.classifyFn != nil {
		return f.classifyFn(ctx, prompt)
	}
	return nil, nil, errors.New("not configured")
}

func incidentResponse(confidence float64) *classify.RawClassification {
	return &classify.RawClassification{
		IsSupportIncident: true,
		Confidence:        confidence,
		Category:          "technical",
		Urgency:           "high",
		Summary:           "Sistema POS no responde",
	}
}

var _ = Describe("Gateway", func() {
	var (
		primary   *fakeProvider
		secondary *fakeProvider
	)

	BeforeEach(func() {
		primary = &fakeProvider{name: "openai/gpt-4o-mini"}
		secondary = &fakeProvider{name: "anthropic/claude-3-5-haiku-latest"}
	})

	Describe("Classify", func() {
		It("returns the primary opinion when the primary succeeds", func() {
			primary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.9), &classify.Usage{PromptTokens: 100, CompletionTokens: 50}, nil
			}
			g := classify.NewGateway([]classify.Provider{primary, secondary}, classify.GatewayOptions{})

			op := g.Classify(context.Background(), "el pos no funciona", nil)

			Expect(op.Errored()).To(BeFalse())
			Expect(*op.IsIncident).To(BeTrue())
			Expect(op.Confidence).To(Equal(0.9))
			Expect(op.Provider).To(Equal("openai/gpt-4o-mini"))
			Expect(secondary.calls.Load()).To(BeZero())
		})

		It("falls back to the secondary when the primary fails", func() {
			primary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return nil, nil, classify.ErrProviderUnavailable
			}
			secondary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.7), nil, nil
			}
			g := classify.NewGateway([]classify.Provider{primary, secondary}, classify.GatewayOptions{})

			op := g.Classify(context.Background(), "el pos no funciona", nil)

			Expect(op.Errored()).To(BeFalse())
			Expect(op.Provider).To(Equal("anthropic/claude-3-5-haiku-latest"))
			Expect(primary.calls.Load()).To(Equal(int32(1)))
		})

		It("returns the conservative default when every provider fails", func() {
			g := classify.NewGateway([]classify.Provider{primary, secondary}, classify.GatewayOptions{})

			op := g.Classify(context.Background(), "el pos no funciona", nil)

			Expect(op.Errored()).To(BeFalse())
			Expect(*op.IsIncident).To(BeTrue())
			Expect(op.Confidence).To(Equal(0.1))
			Expect(op.Provider).To(Equal(classify.DefaultProviderName))
		})
	})

	Describe("ClassifyPair", func() {
		It("runs both providers concurrently and returns both opinions", func() {
			primary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.9), nil, nil
			}
			secondary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.8), nil, nil
			}
			g := classify.NewGateway([]classify.Provider{primary, secondary}, classify.GatewayOptions{})

			a, b := g.ClassifyPair(context.Background(), "el pos no funciona", nil)

			Expect(a.Provider).To(Equal("openai/gpt-4o-mini"))
			Expect(b.Provider).To(Equal("anthropic/claude-3-5-haiku-latest"))
			Expect(a.Confidence).To(Equal(0.9))
			Expect(b.Confidence).To(Equal(0.8))
		})

		It("marks a failed provider as an errored opinion without blocking the other", func() {
			primary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.9), nil, nil
			}
			secondary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return nil, nil, classify.ErrMalformedResponse
			}
			g := classify.NewGateway([]classify.Provider{primary, secondary}, classify.GatewayOptions{})

			a, b := g.ClassifyPair(context.Background(), "el pos no funciona", nil)

			Expect(a.Errored()).To(BeFalse())
			Expect(b.Errored()).To(BeTrue())
		})

		It("treats a slow provider as failed once its call timeout expires", func() {
			primary.classifyFn = func(ctx context.Context, _ string) (*classify.RawClassification, *classify.Usage, error) {
				<-ctx.Done()
				return nil, nil, ctx.Err()
			}
			secondary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.8), nil, nil
			}
			g := classify.NewGateway([]classify.Provider{primary, secondary}, classify.GatewayOptions{
				CallTimeout: 20 * time.Millisecond,
			})

			a, b := g.ClassifyPair(context.Background(), "el pos no funciona", nil)

			Expect(a.Errored()).To(BeTrue())
			Expect(b.Errored()).To(BeFalse())
		})

		It("uses the keyword baseline as the second opinion with a single provider", func() {
			primary.classifyFn = func(context.Context, string) (*classify.RawClassification, *classify.Usage, error) {
				return incidentResponse(0.9), nil, nil
			}
			g := classify.NewGateway([]classify.Provider{primary}, classify.GatewayOptions{})

			a, b := g.ClassifyPair(context.Background(), "urgente el pos no funciona", nil)

			Expect(a.Provider).To(Equal("openai/gpt-4o-mini"))
			Expect(b.Provider).To(Equal(classify.KeywordProviderName))
			Expect(b.Errored()).To(BeFalse())
			Expect(*b.IsIncident).To(BeTrue())
		})

		It("pairs an errored opinion with the keyword baseline when no provider is configured", func() {
			g := classify.NewGateway(nil, classify.GatewayOptions{})

			a, b := g.ClassifyPair(context.Background(), "hola", nil)

			Expect(a.Errored()).To(BeTrue())
			Expect(b.Provider).To(Equal(classify.KeywordProviderName))
		})
	})

	Describe("ConservativeDefault", func() {
		It("is an incident at floor confidence with general inquiry category", func() {
			op := classify.ConservativeDefault()

			Expect(*op.IsIncident).To(BeTrue())
			Expect(op.Confidence).To(Equal(0.1))
			Expect(string(*op.Category)).To(Equal("general_inquiry"))
		})
	})
})
