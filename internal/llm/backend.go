// Package llm provides the reasoning backends that agents are run against.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBackend wraps every failure from a reasoning backend.
var ErrBackend = errors.New("reasoning backend error")

// Provider names accepted by New.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderFireworks = "fireworks"
	ProviderGemini    = "gemini"
)

// Defaults applied by New when Config leaves a field empty.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 120 * time.Second
)

var defaultModels = map[string]string{
	ProviderOllama:    "gemma3:1b",
	ProviderAnthropic: "claude-3-5-sonnet-20241022",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderFireworks: "accounts/fireworks/models/llama-v3p1-8b-instruct",
	ProviderGemini:    "gemini-2.0-flash",
}

var defaultEndpoints = map[string]string{
	ProviderOllama:    "http://127.0.0.1:11434",
	ProviderOpenAI:    "https://api.openai.com/v1",
	ProviderFireworks: "https://api.fireworks.ai/inference/v1",
}

// Options tune a single chat call. A nil Temperature uses the backend's
// configured value, so 0 can be requested explicitly.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// Backend answers one system+user prompt pair with text.
type Backend interface {
	Chat(ctx context.Context, system, user string, opts Options) (string, error)
	HealthCheck(ctx context.Context) bool
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Endpoint    string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// Options returns the per-call options carried by the config.
func (c Config) Options() Options {
	return Options{Temperature: c.Temperature, MaxTokens: c.MaxTokens}
}

// KnownProvider reports whether p names a supported provider.
func KnownProvider(p string) bool {
	_, ok := defaultModels[strings.ToLower(p)]
	return ok
}

// RequiresAPIKey reports whether the provider is hosted.
func RequiresAPIKey(p string) bool {
	return strings.ToLower(p) != ProviderOllama && KnownProvider(p)
}

func (c Config) withDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoints[c.Provider]
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Temperature == nil {
		c.Temperature = Temperature(DefaultTemperature)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Backend, error) {
	cfg = cfg.withDefaults()
	if !KnownProvider(cfg.Provider) {
		return nil, fmt.Errorf("llm.New: unknown provider %q", cfg.Provider)
	}
	if RequiresAPIKey(cfg.Provider) && cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.New: provider %q requires an API key", cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaBackend(cfg), nil
	case ProviderOpenAI, ProviderFireworks:
		return NewOpenAIBackend(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicBackend(cfg), nil
	case ProviderGemini:
		return NewGeminiBackend(ctx, cfg)
	}
	return nil, fmt.Errorf("llm.New: unknown provider %q", cfg.Provider)
}

// withTimeout bounds a call when the caller has not set a deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func backendError(name, step string, err error) error {
	return fmt.Errorf("%w: %s: %s: %w", ErrBackend, name, step, err)
}

func emptyReply(name string) error {
	return fmt.Errorf("%w: %s: empty response", ErrBackend, name)
}

// Temperature returns a pointer for Options and Config.
func Temperature(v float64) *float64 {
	return &v
}

// merge fills unset options from the backend defaults. cfg must have been
// through withDefaults.
func merge(opts Options, cfg Config) Options {
	if opts.Temperature == nil {
		opts.Temperature = cfg.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = cfg.MaxTokens
	}
	return opts
}
