package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct {
	cfg    Config
	client *anthropic.Client
}

// NewAnthropicBackend creates a backend using cfg.APIKey. A non-empty
// cfg.Endpoint overrides the API base URL.
func NewAnthropicBackend(cfg Config) *AnthropicBackend {
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{cfg: cfg, client: &client}
}

// Name returns "anthropic:<model>".
func (b *AnthropicBackend) Name() string {
	return "anthropic:" + b.cfg.Model
}

// Chat sends one user message with the system prompt.
func (b *AnthropicBackend) Chat(ctx context.Context, system, user string, opts Options) (string, error) {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts = merge(opts, b.cfg)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.Model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Temperature: anthropic.Float(*opts.Temperature),
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", backendError(b.Name(), "messages", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", emptyReply(b.Name())
	}
	return text, nil
}

// HealthCheck lists available models.
func (b *AnthropicBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	_, err := b.client.Models.List(ctx, anthropic.ModelListParams{})
	return err == nil
}
