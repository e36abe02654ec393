package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "WARDEN_"

// LoadConfig loads configuration from a YAML file at path, applies defaults
// and validates the result. An empty path yields the defaults. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// WARDEN_SECTION_FIELD environment variable overrides, which always take
// precedence over the file.
//
// The loading sequence is:
// 1. Start from defaults
// 2. Decode the YAML file (if any)
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDotenv loads KEY=VALUE pairs from the given dotenv files into the
// process environment. Variables already set are left untouched, and missing
// files are skipped. With no arguments ".env" is tried.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load dotenv file %q: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. A variable that
// is set but cannot be parsed is reported as a validation error rather than
// silently ignored.
func applyEnvOverrides(cfg *Config) error {
	e := &envReader{}

	// Monitor overrides
	e.boolVar("MONITOR_ENABLED", &cfg.Monitor.Enabled)
	e.stringVar("MONITOR_HOURLY_SCHEDULE", &cfg.Monitor.HourlySchedule)
	e.stringVar("MONITOR_DAILY_SCHEDULE", &cfg.Monitor.DailySchedule)
	e.intVar("MONITOR_WORKERS", &cfg.Monitor.Workers)
	e.stringVar("MONITOR_NOTIFY_MIN_IMPACT", &cfg.Monitor.NotifyMinImpact)
	e.boolVar("MONITOR_DRY_RUN", &cfg.Monitor.DryRun)

	// Classifier overrides
	e.stringVar("CLASSIFIER_PROVIDER", &cfg.Classifier.Provider)
	e.stringVar("CLASSIFIER_BASE_URL", &cfg.Classifier.BaseURL)
	e.stringVar("CLASSIFIER_API_KEY", &cfg.Classifier.APIKey)
	e.stringVar("CLASSIFIER_MODEL", &cfg.Classifier.Model)
	e.durationVar("CLASSIFIER_TIMEOUT", &cfg.Classifier.Timeout)
	e.intVar("CLASSIFIER_MAX_TOKENS", &cfg.Classifier.MaxTokens)

	// Storage overrides
	e.stringVar("STORAGE_DRIVER", &cfg.Storage.Driver)
	e.stringVar("STORAGE_PATH", &cfg.Storage.Path)
	e.intVar("STORAGE_MAX_OPEN_CONNS", &cfg.Storage.MaxOpenConns)
	e.intVar("STORAGE_MAX_IDLE_CONNS", &cfg.Storage.MaxIdleConns)
	e.boolVar("STORAGE_WAL_MODE", &cfg.Storage.WALMode)
	e.durationVar("STORAGE_BUSY_TIMEOUT", &cfg.Storage.BusyTimeout)

	// Retention overrides
	e.intVar("RETENTION_CHECK_RESULT_DAYS", &cfg.Retention.CheckResultDays)
	e.intVar("RETENTION_NOTIFICATION_DAYS", &cfg.Retention.NotificationDays)

	// Notify overrides
	e.boolVar("NOTIFY_NATS_ENABLED", &cfg.Notify.NATS.Enabled)
	e.stringVar("NOTIFY_NATS_URL", &cfg.Notify.NATS.URL)
	e.stringVar("NOTIFY_NATS_SUBJECT", &cfg.Notify.NATS.Subject)

	// Catalog overrides
	e.stringVar("CATALOG_PATH", &cfg.Catalog.Path)
	e.boolVar("CATALOG_WATCH", &cfg.Catalog.Watch)
	e.stringVar("CATALOG_GIT_REPOSITORY", &cfg.Catalog.Git.Repository)
	e.stringVar("CATALOG_GIT_BRANCH", &cfg.Catalog.Git.Branch)
	e.durationVar("CATALOG_GIT_POLL_INTERVAL", &cfg.Catalog.Git.PollInterval)
	e.stringVar("CATALOG_GIT_TOKEN", &cfg.Catalog.Git.Auth.Token)

	// Telemetry overrides
	e.stringVar("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	e.stringVar("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolVar("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.stringVar("TELEMETRY_METRICS_LISTEN", &cfg.Telemetry.Metrics.Listen)
	e.stringVar("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	e.boolVar("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	e.stringVar("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)

	if len(e.errs) > 0 {
		return ValidationError{Errors: e.errs}
	}
	return nil
}

// envReader reads WARDEN_ variables into config fields and collects parse
// errors.
type envReader struct {
	errs []FieldError
}

func (e *envReader) lookup(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	return val, ok && val != ""
}

func (e *envReader) fail(name, val, kind string) {
	e.errs = append(e.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid %s %q", kind, val),
	})
}

func (e *envReader) stringVar(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envReader) intVar(name string, dst *int) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		e.fail(name, val, "integer")
		return
	}
	*dst = i
}

func (e *envReader) boolVar(name string, dst *bool) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(name, val, "boolean")
		return
	}
	*dst = b
}

func (e *envReader) durationVar(name string, dst *time.Duration) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(name, val, "duration")
		return
	}
	*dst = d
}
