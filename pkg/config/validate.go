package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/warden/pkg/compliance"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "storage.driver").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// collecting every failed rule, or nil if the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateMonitor(&cfg.Monitor)...)
	errs = append(errs, validateClassifier(&cfg.Classifier)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateNotify(&cfg.Notify)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateMonitor(cfg *MonitorConfig) []FieldError {
	var errs []FieldError

	for field, expr := range map[string]string{
		"monitor.hourly_schedule": cfg.HourlySchedule,
		"monitor.daily_schedule":  cfg.DailySchedule,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("invalid cron expression %q: %v", expr, err),
			})
		}
	}

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "monitor.workers",
			Message: "workers must be at least 1",
		})
	}

	if _, err := compliance.ParseImpactLevel(cfg.NotifyMinImpact); err != nil {
		errs = append(errs, FieldError{
			Field:   "monitor.notify_min_impact",
			Message: "must be 'low', 'medium', 'high', or 'critical'",
		})
	}

	return errs
}

func validateClassifier(cfg *ClassifierConfig) []FieldError {
	var errs []FieldError

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case "none":
		return nil
	case "openai", "anthropic":
	default:
		errs = append(errs, FieldError{
			Field:   "classifier.provider",
			Message: fmt.Sprintf("invalid provider %q: must be 'openai', 'anthropic', or 'none'", cfg.Provider),
		})
		return errs
	}

	if cfg.APIKey == "" {
		errs = append(errs, FieldError{
			Field:   "classifier.api_key",
			Message: fmt.Sprintf("API key is required for provider %q", provider),
		})
	}
	if cfg.Model == "" {
		errs = append(errs, FieldError{
			Field:   "classifier.model",
			Message: "model is required",
		})
	}
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "classifier.base_url",
				Message: fmt.Sprintf("invalid URL %q", cfg.BaseURL),
			})
		}
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "classifier.timeout",
			Message: "timeout must not be negative",
		})
	}
	if cfg.MaxTokens < 0 {
		errs = append(errs, FieldError{
			Field:   "classifier.max_tokens",
			Message: "max tokens must not be negative",
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Driver {
	case "memory":
		return nil
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite', 'sqlite3', or 'memory'", cfg.Driver),
		})
		return errs
	}

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.path",
			Message: "path is required for SQLite storage",
		})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, FieldError{
			Field:   "storage.max_open_conns",
			Message: "max open connections must be at least 1",
		})
	}
	if cfg.MaxIdleConns < 0 || cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{
			Field:   "storage.max_idle_conns",
			Message: "max idle connections must be between 0 and max_open_conns",
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "busy timeout must not be negative",
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.CheckResultDays < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.check_result_days",
			Message: "must be 0 (keep forever) or positive",
		})
	}
	if cfg.NotificationDays < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.notification_days",
			Message: "must be 0 (keep forever) or positive",
		})
	}

	return errs
}

func validateNotify(cfg *NotifyConfig) []FieldError {
	var errs []FieldError

	if !cfg.NATS.Enabled {
		return nil
	}
	if cfg.NATS.URL == "" {
		errs = append(errs, FieldError{
			Field:   "notify.nats.url",
			Message: "URL is required when NATS publishing is enabled",
		})
	}
	if cfg.NATS.Subject == "" || strings.ContainsAny(cfg.NATS.Subject, " \t*>") {
		errs = append(errs, FieldError{
			Field:   "notify.nats.subject",
			Message: fmt.Sprintf("invalid subject %q: must be non-empty without spaces or wildcards", cfg.NATS.Subject),
		})
	}

	return errs
}

func validateCatalog(cfg *CatalogConfig) []FieldError {
	var errs []FieldError

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "catalog.debounce",
			Message: "debounce must not be negative",
		})
	}

	git := &cfg.Git
	if !git.Enabled() {
		return errs
	}
	if filepath.IsAbs(git.File) || strings.HasPrefix(filepath.Clean(git.File), "..") {
		errs = append(errs, FieldError{
			Field:   "catalog.git.file",
			Message: fmt.Sprintf("file %q must be relative to the repository root", git.File),
		})
	}
	if git.Depth < 0 {
		errs = append(errs, FieldError{
			Field:   "catalog.git.depth",
			Message: "depth must not be negative",
		})
	}
	if git.PollInterval < 0 || git.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "catalog.git.poll_interval",
			Message: "poll interval and timeout must not be negative",
		})
	}

	switch git.Auth.Type {
	case "none":
	case "token":
		if git.Auth.Token == "" {
			errs = append(errs, FieldError{
				Field:   "catalog.git.auth.token",
				Message: "token is required for token auth",
			})
		}
	case "ssh":
		if git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{
				Field:   "catalog.git.auth.ssh_key_path",
				Message: "ssh_key_path is required for ssh auth",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "catalog.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'token', 'ssh', or 'none'", git.Auth.Type),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen",
				Message: "listen address is required when metrics are enabled",
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with '/'",
			})
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	for field, path := range map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
	} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "path must start with '/'",
			})
		}
	}

	return errs
}
