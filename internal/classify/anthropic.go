package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mesadesk.app/triage/core/config"
)

type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates a classification provider on the Anthropic messages
// API. Anthropic has no strict response-format parameter, so the schema is
// described in the prompt and the reply is validated on parse.
func NewAnthropic(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	return &anthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (p *anthropicProvider) Name() string {
	return "anthropic/" + p.model
}

func (p *anthropicProvider) Classify(ctx context.Context, prompt string) (*RawClassification, *Usage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt + "\n\n" + anthropicSchemaHint},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(0.1),
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: anthropic messages: %w", ErrProviderUnavailable, err)
	}

	slog.DebugContext(ctx, "classification completed",
		"model", p.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	raw, err := parseJSONReply(text)
	if err != nil {
		return nil, nil, err
	}

	return raw, &Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

const anthropicSchemaHint = `Respond only with a JSON object with exactly these fields:
{"is_support_incident": bool, "confidence": float 0..1, "category": "technical"|"billing"|"operational"|"urgent"|"general_inquiry"|"not_support", "urgency": "low"|"medium"|"high"|"critical", "summary": string, "requires_followup": bool, "suggested_response": string, "extracted_info": {"user_type": "customer"|"potential_customer"|"internal"|"unknown", "product_mentioned": string, "error_code": string, "contact_info": string}}`

// parseJSONReply tolerates a fenced code block around the JSON object but
// rejects anything that does not decode to the schema.
func parseJSONReply(text string) (*RawClassification, error) {
	trimmed := strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	var raw RawClassification
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %w", ErrMalformedResponse, err)
	}
	return &raw, nil
}
