package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend calls Gemini through the genai SDK.
type GeminiBackend struct {
	cfg    Config
	client *genai.Client
}

// NewGeminiBackend creates a Gemini API client for cfg.APIKey.
func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	cfg = cfg.withDefaults()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiBackend: create genai client: %w", err)
	}
	return &GeminiBackend{cfg: cfg, client: client}, nil
}

// Name returns "gemini:<model>".
func (b *GeminiBackend) Name() string {
	return "gemini:" + b.cfg.Model
}

// Chat generates content with the system prompt as system instruction.
func (b *GeminiBackend) Chat(ctx context.Context, system, user string, opts Options) (string, error) {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts = merge(opts, b.cfg)
	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(*opts.Temperature)),
		MaxOutputTokens:   int32(opts.MaxTokens),
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.cfg.Model, contents, config)
	if err != nil {
		return "", backendError(b.Name(), "generate content", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", emptyReply(b.Name())
	}
	return text, nil
}

// HealthCheck fetches the configured model's metadata.
func (b *GeminiBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	_, err := b.client.Models.Get(ctx, b.cfg.Model, nil)
	return err == nil
}
