package classifier

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// DefaultOpenAIBaseURL is used when Config.BaseURL is empty.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIRequest is the subset of the chat completions request the classifier uses.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAI is a Classifier over an OpenAI-compatible chat completions API.
type OpenAI struct {
	*HTTPClient
}

// NewOpenAI creates an OpenAI classifier.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	cfg.applyDefaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: cfg.Provider, Field: "api_key", Message: "API key is required for OpenAI"}
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Provider: cfg.Provider, Field: "model", Message: "model is required"}
	}

	return &OpenAI{HTTPClient: NewHTTPClient(cfg, logger)}, nil
}

// Complete sends the instruction as the system message and input as the user
// message, and returns the first choice's content.
func (p *OpenAI) Complete(ctx context.Context, instruction, input string) (string, error) {
	cfg := p.Config()

	req := &openAIRequest{
		Model: cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		Temperature: 0,
		MaxTokens:   cfg.MaxTokens,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}

	var resp openAIResponse
	url := strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions"
	if err := p.DoJSON(ctx, url, req, &resp, headers); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", &ParseError{Provider: p.Name(), Cause: errors.New("response has no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}
