package config

import "log/slog"

// LogValue implements slog.LogValuer so the API key never reaches the logs.
func (c ClassifierConfig) LogValue() slog.Value {
	key := ""
	if c.APIKey != "" {
		key = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("base_url", c.BaseURL),
		slog.String("api_key", key),
		slog.String("model", c.Model),
		slog.Duration("timeout", c.Timeout),
		slog.Int("max_tokens", c.MaxTokens),
	)
}

// LogValue implements slog.LogValuer so credentials never reach the logs.
func (c GitAuthConfig) LogValue() slog.Value {
	token := ""
	if c.Token != "" {
		token = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("type", c.Type),
		slog.String("token", token),
		slog.String("ssh_key_path", c.SSHKeyPath),
	)
}
