package config

import "time"

// Default values for configuration fields.
const (
	// Monitor defaults
	DefaultMonitorEnabled  = true
	DefaultHourlySchedule  = "0 * * * *"
	DefaultDailySchedule   = "0 3 * * *"
	DefaultWorkers         = 1
	DefaultNotifyMinImpact = "high"

	// Classifier defaults
	DefaultClassifierProvider  = "none"
	DefaultClassifierTimeout   = 30 * time.Second
	DefaultClassifierMaxTokens = 2048

	// Storage defaults
	DefaultStorageDriver       = "sqlite"
	DefaultStoragePath         = "data/warden.db"
	DefaultStorageMaxOpenConns = 10
	DefaultStorageMaxIdleConns = 5
	DefaultStorageWALMode      = true
	DefaultStorageBusyTimeout  = 5 * time.Second

	// Retention defaults
	DefaultCheckResultDays  = 90
	DefaultNotificationDays = 30

	// Notify defaults
	DefaultNATSURL            = "nats://127.0.0.1:4222"
	DefaultNATSSubject        = "warden.events"
	DefaultNATSConnectTimeout = 5 * time.Second

	// Catalog defaults
	DefaultCatalogDebounce = 500 * time.Millisecond
	DefaultGitBranch       = "main"
	DefaultGitFile         = "catalog.yaml"
	DefaultGitLocalPath    = "data/catalog-repo"
	DefaultGitPollInterval = 5 * time.Minute
	DefaultGitTimeout      = 30 * time.Second
	DefaultGitAuthType     = "none"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsListen      = "127.0.0.1:9090"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "warden"
	DefaultMetricsSubsystem   = "monitor"
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingEndpoint    = "127.0.0.1:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingServiceName = "warden"
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// NewDefault returns a configuration with every field set to its default.
// Boolean and schedule fields can only be defaulted here, since their zero
// values are meaningful; LoadConfig decodes the YAML file on top of it.
func NewDefault() *Config {
	cfg := &Config{
		Monitor: MonitorConfig{
			Enabled:        DefaultMonitorEnabled,
			HourlySchedule: DefaultHourlySchedule,
			DailySchedule:  DefaultDailySchedule,
		},
		Storage: StorageConfig{
			WALMode: DefaultStorageWALMode,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Monitor defaults
	if cfg.Monitor.Workers <= 0 {
		cfg.Monitor.Workers = DefaultWorkers
	}
	if cfg.Monitor.NotifyMinImpact == "" {
		cfg.Monitor.NotifyMinImpact = DefaultNotifyMinImpact
	}

	// Classifier defaults
	if cfg.Classifier.Provider == "" {
		cfg.Classifier.Provider = DefaultClassifierProvider
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = DefaultClassifierTimeout
	}
	if cfg.Classifier.MaxTokens == 0 {
		cfg.Classifier.MaxTokens = DefaultClassifierMaxTokens
	}

	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.MaxOpenConns == 0 {
		cfg.Storage.MaxOpenConns = DefaultStorageMaxOpenConns
	}
	if cfg.Storage.MaxIdleConns == 0 {
		cfg.Storage.MaxIdleConns = DefaultStorageMaxIdleConns
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}

	// Notify defaults
	if cfg.Notify.NATS.URL == "" {
		cfg.Notify.NATS.URL = DefaultNATSURL
	}
	if cfg.Notify.NATS.Subject == "" {
		cfg.Notify.NATS.Subject = DefaultNATSSubject
	}
	if cfg.Notify.NATS.ConnectTimeout == 0 {
		cfg.Notify.NATS.ConnectTimeout = DefaultNATSConnectTimeout
	}

	// Catalog defaults
	if cfg.Catalog.Debounce == 0 {
		cfg.Catalog.Debounce = DefaultCatalogDebounce
	}
	if git := &cfg.Catalog.Git; git.Enabled() {
		if git.Branch == "" {
			git.Branch = DefaultGitBranch
		}
		if git.File == "" {
			git.File = DefaultGitFile
		}
		if git.LocalPath == "" {
			git.LocalPath = DefaultGitLocalPath
		}
		if git.PollInterval == 0 {
			git.PollInterval = DefaultGitPollInterval
		}
		if git.Timeout == 0 {
			git.Timeout = DefaultGitTimeout
		}
		if git.Auth.Type == "" {
			git.Auth.Type = DefaultGitAuthType
		}
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Listen == "" {
		cfg.Telemetry.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
