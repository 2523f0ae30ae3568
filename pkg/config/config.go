// Package config loads process settings once at startup from the
// environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/rcliao/teeny-mcp/pkg/logutil"
	"github.com/rcliao/teeny-mcp/pkg/provider"
)

const (
	defaultLogLevel      = "info"
	defaultMaxTokens     = 1024
	defaultMaxIterations = 20
)

const (
	envService       = "LLM_SERVICE"
	envModel         = "MODEL_NAME"
	envDebug         = "IS_DEBUG"
	envLogLevel      = "CLIENT_LOG_LEVEL"
	envOpenAIBaseURL = "OPENAI_BASE_URL"
	envMaxTokens     = "MAX_TOKENS"
	envDBPath        = "SERVER_DB_PATH"
	envResourceDir   = "SERVER_RESOURCE_DIR"
	envLogDir        = "LOG_DIR"
	envMaxIterations = "MAX_TOOL_ITERATIONS"
	envOpenAIKey     = "OPENAI_API_KEY"
	envAnthropicKey  = "ANTHROPIC_API_KEY"
	envGeminiKey     = "GEMINI_API_KEY"
	envGoogleKey     = "GOOGLE_API_KEY"
)

// Config holds every setting the client and server read.
type Config struct {
	Service       string
	Model         string
	Debug         bool
	LogLevel      string
	OpenAIBaseURL string
	MaxTokens     int
	DBPath        string
	ResourceDir   string
	LogDir        string
	MaxIterations int

	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
}

// Default returns the settings used when a variable is unset.
func Default() Config {
	return Config{
		LogLevel:      defaultLogLevel,
		MaxTokens:     defaultMaxTokens,
		MaxIterations: defaultMaxIterations,
	}
}

// Load reads .env files (missing ones are skipped) and then the
// environment. Variables already set in the environment win over files.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	cfg.Service = env(envService)
	cfg.Model = env(envModel)
	cfg.OpenAIBaseURL = env(envOpenAIBaseURL)
	cfg.DBPath = env(envDBPath)
	cfg.ResourceDir = env(envResourceDir)
	cfg.LogDir = env(envLogDir)
	cfg.OpenAIKey = env(envOpenAIKey)
	cfg.AnthropicKey = env(envAnthropicKey)
	cfg.GeminiKey = env(envGeminiKey)
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = env(envGoogleKey)
	}
	if level := env(envLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if raw := env(envDebug); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envDebug, err)
		}
		cfg.Debug = parsed
	}
	if raw := env(envMaxTokens); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envMaxTokens, err)
		}
		cfg.MaxTokens = parsed
	}
	if raw := env(envMaxIterations); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envMaxIterations, err)
		}
		cfg.MaxIterations = parsed
	}
	return cfg, nil
}

// Validate checks the settings the chat client needs.
func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("validate config: %s is required", envService)
	}
	if _, err := provider.ParseService(c.Service); err != nil {
		return fmt.Errorf("validate config: %s: %w", envService, err)
	}
	if c.Model == "" {
		return fmt.Errorf("validate config: %s is required", envModel)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("validate config: %s must be > 0", envMaxTokens)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("validate config: %s must be >= 0", envMaxIterations)
	}
	if _, err := logutil.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("validate config: %s: %w", envLogLevel, err)
	}
	return nil
}

// APIKey returns the key for the configured service.
func (c Config) APIKey() string {
	svc, err := provider.ParseService(c.Service)
	if err != nil {
		return ""
	}
	switch svc {
	case provider.ServiceOpenAI:
		return c.OpenAIKey
	case provider.ServiceAnthropic:
		return c.AnthropicKey
	case provider.ServiceGemini:
		return c.GeminiKey
	}
	return ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
