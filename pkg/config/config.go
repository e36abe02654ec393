package config

import "time"

// Config is the root configuration structure for Warden. It contains the
// monitoring schedule, the classifier backend, persistent storage, retention,
// notification fan-out, the policy catalog and telemetry settings.
type Config struct {
	// Monitor contains the monitoring cycle schedule and concurrency settings.
	Monitor MonitorConfig `yaml:"monitor"`

	// Classifier configures the language model used for semantic change
	// detection and AI-assisted compliance checks.
	Classifier ClassifierConfig `yaml:"classifier"`

	// Storage selects and configures the persistent store.
	Storage StorageConfig `yaml:"storage"`

	// Retention controls how long check results and notifications are kept.
	Retention RetentionConfig `yaml:"retention"`

	// Notify configures the optional event bus publisher.
	Notify NotifyConfig `yaml:"notify"`

	// Catalog points at the YAML catalog of policies, versions, checks and
	// subscriptions.
	Catalog CatalogConfig `yaml:"catalog"`

	// Telemetry contains logging, metrics and health endpoint settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MonitorConfig contains the monitoring cycle configuration.
type MonitorConfig struct {
	// Enabled controls whether the run command schedules monitoring cycles.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// HourlySchedule is the cron expression for the monitoring cycle.
	// An empty value disables the job.
	// Default: "0 * * * *"
	HourlySchedule string `yaml:"hourly_schedule"`

	// DailySchedule is the cron expression for the daily batch (retention
	// pruning and the compliance summary). An empty value disables the job.
	// Default: "0 3 * * *"
	DailySchedule string `yaml:"daily_schedule"`

	// Workers is the number of policies processed concurrently.
	// Default: 1 (sequential)
	Workers int `yaml:"workers"`

	// NotifyMinImpact is the lowest change impact that triggers a
	// policy_change notification.
	// Options: "low", "medium", "high", "critical"
	// Default: "high"
	NotifyMinImpact string `yaml:"notify_min_impact"`

	// DryRun evaluates policies without writing results.
	// Default: false
	DryRun bool `yaml:"dry_run"`
}

// ClassifierConfig configures the language model backend.
type ClassifierConfig struct {
	// Provider selects the backend.
	// Options: "openai", "anthropic", "none"
	// Default: "none"
	Provider string `yaml:"provider"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey is the provider credential. Prefer WARDEN_CLASSIFIER_API_KEY or
	// a dotenv file over putting it in the YAML file.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier.
	Model string `yaml:"model"`

	// Timeout bounds each classifier request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxTokens caps the reply length.
	// Default: 2048
	MaxTokens int `yaml:"max_tokens"`
}

// StorageConfig configures the persistent store.
type StorageConfig struct {
	// Driver selects the backend.
	// Options: "sqlite3" (mattn, cgo), "sqlite" (modernc, pure Go), "memory"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/warden.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables SQLite write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig controls history pruning. A value of 0 keeps rows forever.
type RetentionConfig struct {
	// CheckResultDays is the number of days check results are kept.
	// Default: 90
	CheckResultDays int `yaml:"check_result_days"`

	// NotificationDays is the number of days notifications are kept.
	// Default: 30
	NotificationDays int `yaml:"notification_days"`
}

// NotifyConfig configures notification side channels.
type NotifyConfig struct {
	// NATS configures publishing of domain events to a NATS subject.
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the NATS event publisher.
type NATSConfig struct {
	// Enabled turns on event publishing.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// URL is the NATS server URL.
	// Default: "nats://127.0.0.1:4222"
	URL string `yaml:"url"`

	// Subject is the subject prefix; events go to "<subject>.<kind>".
	// Default: "warden.events"
	Subject string `yaml:"subject"`

	// ConnectTimeout bounds the initial connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// CatalogConfig configures the policy catalog file.
type CatalogConfig struct {
	// Path is the catalog YAML file. Empty disables catalog loading in run.
	Path string `yaml:"path"`

	// Watch re-imports the catalog when the file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce delays re-import after a burst of file events.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`

	// Git fetches the catalog from a repository instead of a local file.
	// When Git.Repository is set, Path is ignored.
	Git CatalogGitConfig `yaml:"git"`
}

// CatalogGitConfig configures a catalog kept in a Git repository.
type CatalogGitConfig struct {
	// Repository is the clone URL or a local repository path.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// File is the catalog path inside the repository.
	// Default: "catalog.yaml"
	File string `yaml:"file"`

	// LocalPath is where the repository is cloned.
	// Default: "data/catalog-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; 0 clones everything.
	Depth int `yaml:"depth"`

	// PollInterval is how often run pulls for new commits; 0 disables polling.
	// Default: 5m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	Auth GitAuthConfig `yaml:"auth"`
}

// Enabled reports whether a repository is configured.
func (c CatalogGitConfig) Enabled() bool {
	return c.Repository != ""
}

// GitAuthConfig holds repository credentials.
type GitAuthConfig struct {
	// Type is "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	Token            string `yaml:"token"`
	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Listen is the address of the telemetry HTTP server in the run command.
	// Default: "127.0.0.1:9090"
	Listen string `yaml:"listen"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "warden"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "monitor"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig configures OpenTelemetry tracing of monitoring runs.
type TracingConfig struct {
	// Enabled exports spans over OTLP gRPC.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampled fraction for the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP collector host:port.
	// Default: "127.0.0.1:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service.name resource attribute.
	// Default: "warden"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
