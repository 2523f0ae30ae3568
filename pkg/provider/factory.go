package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service selects a backend.
type Service string

const (
	ServiceOpenAI    Service = "openai"
	ServiceGemini    Service = "google"
	ServiceAnthropic Service = "anthropic"
)

// ParseService resolves a service name or alias.
// Supported: "openai", "gpt", "google", "gemini", "anthropic", "claude".
func ParseService(name string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "gpt":
		return ServiceOpenAI, nil
	case "google", "gemini":
		return ServiceGemini, nil
	case "anthropic", "claude":
		return ServiceAnthropic, nil
	default:
		return "", fmt.Errorf("unknown provider: %q (supported: openai, google, anthropic)", name)
	}
}

// Config holds provider configuration.
type Config struct {
	Service   Service
	APIKey    string
	Model     string
	BaseURL   string // Optional: custom endpoint, e.g. for OpenAI-compatible APIs
	MaxTokens int
	Logger    *slog.Logger
}

// New creates the Provider selected by cfg.Service.
func New(ctx context.Context, cfg Config) (Provider, error) {
	opts := []Option{WithMaxTokens(cfg.MaxTokens), WithLogger(cfg.Logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Service {
	case ServiceOpenAI:
		p = NewOpenAI(cfg.APIKey, cfg.Model, opts...)
	case ServiceGemini:
		p, err = NewGemini(ctx, cfg.APIKey, cfg.Model, opts...)
	case ServiceAnthropic:
		p = NewAnthropic(cfg.APIKey, cfg.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown provider: %q (supported: openai, google, anthropic)", cfg.Service)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("llm client set up", "model", cfg.Model, "service", cfg.Service)
	}
	return p, nil
}
