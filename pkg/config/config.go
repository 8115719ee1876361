package config

import "time"

// Config is the root configuration for the Arbiter service.
type Config struct {
	// Schema contains tool schema catalogue configuration.
	Schema SchemaConfig `yaml:"schema"`

	// Policy contains policy source and evaluation configuration.
	Policy PolicyConfig `yaml:"policy"`

	// Audit contains decision audit trail configuration.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains observability configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SchemaConfig contains tool schema catalogue configuration.
type SchemaConfig struct {
	// CataloguePath is the YAML file declaring tool targets, methods, and
	// parameter types. Policies validate against this catalogue.
	CataloguePath string `yaml:"catalogue_path"`
}

// PolicyConfig contains policy source and evaluation configuration.
type PolicyConfig struct {
	// Path is the directory containing .apl policy files.
	Path string `yaml:"path"`

	// Watch enables hot-reload of policy files on change.
	// Default: true
	Watch bool `yaml:"watch"`

	// Mode is the default engine mode for new engines.
	// Options: "enforce", "log_only"
	// Default: "enforce"
	Mode string `yaml:"mode"`
}

// AuditConfig contains decision audit trail configuration.
type AuditConfig struct {
	// Enabled controls whether decisions are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Retention contains retention pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains audit retention configuration.
type RetentionConfig struct {
	// RetentionDays is the number of days to retain records.
	// 0 keeps records forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Empty disables the scheduler.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// MaxRecords caps the total record count. 0 means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
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
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Port is the port for the metrics endpoint. 0 disables the listener.
	Port int `yaml:"port"`

	// Namespace is the metric name prefix.
	// Default: "arbiter"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "authz"
	Subsystem string `yaml:"subsystem"`

	// EvalDurationBuckets defines histogram buckets for evaluation duration
	// in seconds.
	// Default: 1µs to 16ms exponential
	EvalDurationBuckets []float64 `yaml:"eval_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "arbiter"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
