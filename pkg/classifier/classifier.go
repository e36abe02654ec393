package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Classifier sends one instruction and one input document to a language model
// and returns the raw text of its reply. Implementations make a single
// attempt and return a typed error on any failure.
type Classifier interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Config configures a classifier backend.
type Config struct {
	// Provider selects the backend: "openai", "anthropic" or "none".
	Provider string

	// BaseURL overrides the provider's default API endpoint. Any
	// OpenAI-compatible server works with the "openai" provider.
	BaseURL string

	// APIKey is the opaque credential sent to the provider.
	APIKey string

	// Model is the model identifier passed to the provider.
	Model string

	// Timeout bounds every request.
	// Default: 30s
	Timeout time.Duration

	// MaxTokens caps the reply length.
	// Default: 2048
	MaxTokens int
}

// Backend is a Classifier that also reports request statistics.
type Backend interface {
	Classifier
	Name() string
	Healthy() bool
	Stats() Stats
	Close() error
}

// New creates the backend selected by cfg.Provider. It returns (nil, nil) for
// provider "none" or an empty provider, which leaves the engine on its
// deterministic paths.
func New(cfg Config, logger *slog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		p, err := NewOpenAI(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderAnthropic:
		p, err := NewAnthropic(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, &ConfigError{
			Provider: cfg.Provider,
			Field:    "provider",
			Message:  fmt.Sprintf("unsupported provider (supported: %s, %s, %s)", ProviderOpenAI, ProviderAnthropic, ProviderNone),
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
}

// ExtractJSON trims a model reply down to its JSON payload. Models often wrap
// JSON in a Markdown code fence; the fence and any language tag are removed.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
