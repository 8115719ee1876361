package config

import "time"

// Default values for configuration fields.
const (
	// Schema defaults
	DefaultSchemaCataloguePath = "schema/catalogue.yaml"

	// Policy defaults
	DefaultPolicyPath  = "policies/"
	DefaultPolicyWatch = true
	DefaultPolicyMode  = "enforce"

	// Audit defaults
	DefaultAuditEnabled           = true
	DefaultAuditBackend           = "sqlite"
	DefaultAuditPath              = "data/audit.db"
	DefaultAuditAsyncBuffer       = 1000
	DefaultAuditWriteTimeout      = 5 * time.Second
	DefaultAuditRetentionDays     = 90
	DefaultAuditRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "arbiter"
	DefaultMetricsSubsystem   = "authz"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingService     = "arbiter"
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
)

// NewDefaultConfig returns a configuration populated with every default.
// Boolean defaults are set here rather than in ApplyDefaults: a false loaded
// from YAML is indistinguishable from the zero value, so LoadConfig
// unmarshals on top of this struct instead.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Policy: PolicyConfig{Watch: DefaultPolicyWatch},
		Audit:  AuditConfig{Enabled: DefaultAuditEnabled},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Insecure: DefaultTracingInsecure},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Schema.CataloguePath == "" {
		cfg.Schema.CataloguePath = DefaultSchemaCataloguePath
	}

	if cfg.Policy.Path == "" {
		cfg.Policy.Path = DefaultPolicyPath
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = DefaultPolicyMode
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.Retention.RetentionDays == 0 {
		cfg.Audit.Retention.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.Retention.PruneSchedule == "" {
		cfg.Audit.Retention.PruneSchedule = DefaultAuditRetentionSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
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
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
