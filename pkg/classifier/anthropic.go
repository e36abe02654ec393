package classifier

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

const (
	// DefaultAnthropicBaseURL is used when Config.BaseURL is empty.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	// DefaultAnthropicVersion is the API version to use
	DefaultAnthropicVersion = "2023-06-01"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Anthropic is a Classifier over the Anthropic Messages API.
type Anthropic struct {
	*HTTPClient
}

// NewAnthropic creates an Anthropic classifier.
func NewAnthropic(cfg Config, logger *slog.Logger) (*Anthropic, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderAnthropic
	}
	cfg.applyDefaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: cfg.Provider, Field: "api_key", Message: "API key is required for Anthropic"}
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Provider: cfg.Provider, Field: "model", Message: "model is required"}
	}

	return &Anthropic{HTTPClient: NewHTTPClient(cfg, logger)}, nil
}

// Complete sends the instruction as the system prompt and input as the single
// user turn, and returns the concatenated text blocks of the reply.
func (p *Anthropic) Complete(ctx context.Context, instruction, input string) (string, error) {
	cfg := p.Config()

	req := &anthropicRequest{
		Model:       cfg.Model,
		System:      instruction,
		Messages:    []anthropicMessage{{Role: "user", Content: input}},
		MaxTokens:   cfg.MaxTokens,
		Temperature: 0,
	}
	headers := map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": DefaultAnthropicVersion,
	}

	var resp anthropicResponse
	url := strings.TrimSuffix(cfg.BaseURL, "/") + "/v1/messages"
	if err := p.DoJSON(ctx, url, req, &resp, headers); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ParseError{Provider: p.Name(), Cause: errors.New("response has no text content")}
	}

	return sb.String(), nil
}
