package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend speaks the OpenAI chat completions protocol. Fireworks uses
// the same wire format under a different endpoint.
type OpenAIBackend struct {
	cfg    Config
	client *openai.Client
}

// NewOpenAIBackend creates a backend for cfg.Endpoint.
func NewOpenAIBackend(cfg Config) *OpenAIBackend {
	cfg = cfg.withDefaults()
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.Endpoint),
	)
	return &OpenAIBackend{cfg: cfg, client: &client}
}

// Name returns "<provider>:<model>".
func (b *OpenAIBackend) Name() string {
	return b.cfg.Provider + ":" + b.cfg.Model
}

// Chat sends the system and user prompts as one completion request.
func (b *OpenAIBackend) Chat(ctx context.Context, system, user string, opts Options) (string, error) {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts = merge(opts, b.cfg)
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(*opts.Temperature),
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
	})
	if err != nil {
		return "", backendError(b.Name(), "chat completions", err)
	}
	if len(resp.Choices) == 0 {
		return "", emptyReply(b.Name())
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", emptyReply(b.Name())
	}
	return text, nil
}

// HealthCheck lists models.
func (b *OpenAIBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	_, err := b.client.Models.List(ctx)
	return err == nil
}
