package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaBackend talks to a local Ollama server.
type OllamaBackend struct {
	cfg    Config
	client *api.Client
	err    error
}

// NewOllamaBackend creates a backend for cfg.Endpoint. An unparsable
// endpoint surfaces as an error from every Chat call.
func NewOllamaBackend(cfg Config) *OllamaBackend {
	cfg = cfg.withDefaults()
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return &OllamaBackend{cfg: cfg, err: fmt.Errorf("parse endpoint: %w", err)}
	}
	return &OllamaBackend{cfg: cfg, client: api.NewClient(base, &http.Client{})}
}

// Name returns "ollama:<model>".
func (b *OllamaBackend) Name() string {
	return "ollama:" + b.cfg.Model
}

// Chat sends a non-streaming chat request.
func (b *OllamaBackend) Chat(ctx context.Context, system, user string, opts Options) (string, error) {
	if b.err != nil {
		return "", backendError(b.Name(), "client", b.err)
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts = merge(opts, b.cfg)
	stream := false
	req := &api.ChatRequest{
		Model: b.cfg.Model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": *opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}

	var out strings.Builder
	err := b.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", backendError(b.Name(), "chat", err)
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", emptyReply(b.Name())
	}
	return text, nil
}

// HealthCheck lists local models.
func (b *OllamaBackend) HealthCheck(ctx context.Context) bool {
	if b.err != nil {
		return false
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	_, err := b.client.List(ctx)
	return err == nil
}
