// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/dompet/internal/llm"
	"github.com/joho/godotenv"
)

// Config holds every setting the binaries read at startup.
type Config struct {
	DBPath   string
	HTTPAddr string
	LogLevel string

	LLM       llm.Config
	HealthTTL time.Duration

	AnalyzeRate  float64
	AnalyzeBurst int

	PromptsFile string

	BQProject string
	BQDataset string

	NotionToken string
	NotionDBID  string
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	// A missing .env file is expected outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads settings from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error

	temperature, err := getEnvAsFloat("DOMPET_LLM_TEMPERATURE", llm.DefaultTemperature)
	errs = append(errs, err)
	maxTokens, err := getEnvAsInt("DOMPET_LLM_MAX_TOKENS", llm.DefaultMaxTokens)
	errs = append(errs, err)
	timeout, err := getEnvAsDuration("DOMPET_LLM_TIMEOUT", llm.DefaultTimeout)
	errs = append(errs, err)
	healthTTL, err := getEnvAsDuration("DOMPET_HEALTH_TTL", 30*time.Second)
	errs = append(errs, err)
	rate, err := getEnvAsFloat("DOMPET_ANALYZE_RATE", 0.2)
	errs = append(errs, err)
	burst, err := getEnvAsInt("DOMPET_ANALYZE_BURST", 2)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		DBPath:   getEnv("DOMPET_DB_PATH", "dompet.sqlite"),
		HTTPAddr: getEnv("DOMPET_HTTP_ADDR", ":8080"),
		LogLevel: getEnv("DOMPET_LOG_LEVEL", "info"),
		LLM: llm.Config{
			Provider:    strings.ToLower(getEnv("DOMPET_LLM_PROVIDER", llm.ProviderOllama)),
			Model:       getEnv("DOMPET_LLM_MODEL", ""),
			APIKey:      getEnv("DOMPET_LLM_API_KEY", ""),
			Endpoint:    getEnv("DOMPET_LLM_ENDPOINT", ""),
			Temperature: llm.Temperature(temperature),
			MaxTokens:   maxTokens,
			Timeout:     timeout,
		},
		HealthTTL:    healthTTL,
		AnalyzeRate:  rate,
		AnalyzeBurst: burst,
		PromptsFile:  getEnv("DOMPET_PROMPTS_FILE", ""),
		BQProject:    getEnv("DOMPET_BQ_PROJECT", ""),
		BQDataset:    getEnv("DOMPET_BQ_DATASET", "dompet"),
		NotionToken:  getEnv("DOMPET_NOTION_TOKEN", ""),
		NotionDBID:   getEnv("DOMPET_NOTION_DB_ID", ""),
	}
	return cfg, nil
}

// Validate rejects settings no backend can run with.
func (c *Config) Validate() error {
	var errs []error
	if !llm.KnownProvider(c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("unknown LLM provider %q", c.LLM.Provider))
	} else if llm.RequiresAPIKey(c.LLM.Provider) && c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("DOMPET_LLM_API_KEY is required for provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, errors.New("DOMPET_LLM_MAX_TOKENS must be positive"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("DOMPET_LLM_TIMEOUT must be positive"))
	}
	if c.AnalyzeRate < 0 || c.AnalyzeBurst < 0 {
		errs = append(errs, errors.New("analyze rate and burst cannot be negative"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DOMPET_DB_PATH is required"))
	}
	return errors.Join(errs...)
}

// ExportEnabled reports whether BigQuery export is configured.
func (c *Config) ExportEnabled() bool {
	return c.BQProject != ""
}

// NotionEnabled reports whether the Notion mirror is configured.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDBID != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return v, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return v, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return v, nil
}
