package config

import (
	"time"

	"mercator-hq/truncator/pkg/schema"
)

// Config is the root configuration structure for the truncator.
type Config struct {
	// Storage selects and configures the version history backend.
	Storage StorageConfig `yaml:"storage"`

	// Schema describes the record types and their version tables.
	Schema SchemaConfig `yaml:"schema"`

	// Retention contains the retention policies and the sweep schedule.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains configuration for logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig configures the version history backend.
type StorageConfig struct {
	// Driver selects the backend.
	// Options: "sqlite3" (cgo), "sqlite" (pure Go), "postgres", "mysql", "memory"
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// Path is the database file for the SQLite drivers.
	// Default: "data/versions.db"
	Path string `yaml:"path"`

	// DSN is the connection string for postgres and mysql.
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds how long a connection may be reused.
	// Zero means connections are reused forever.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// WALMode enables SQLite write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WAL reports whether write-ahead logging is enabled.
func (s StorageConfig) WAL() bool {
	return s.WALMode == nil || *s.WALMode
}

// SchemaConfig describes the record types known to the truncator.
type SchemaConfig struct {
	// VersionSuffix is appended to a data table name to name its version table.
	// Default: "_Versions"
	VersionSuffix string `yaml:"version_suffix"`

	// Types lists every versioned record type and its ancestors.
	Types []schema.TypeDef `yaml:"types"`
}

// RetentionConfig contains the retention policies.
type RetentionConfig struct {
	// Defaults applies to every type unless overridden.
	Defaults PolicyConfig `yaml:"defaults"`

	// Types holds per-type overrides keyed by type name.
	Types map[string]PolicyConfig `yaml:"types"`

	// Schedule is the cron expression used by "run" for scheduled sweeps.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// SweepTypes limits scheduled sweeps to these types. Empty means every
	// configured type.
	SweepTypes []string `yaml:"sweep_types"`
}

// PolicyConfig is one layer of retention settings. Nil fields are unset and
// inherit from the next layer.
type PolicyConfig struct {
	// KeepVersions is the number of published versions to keep.
	// Unset, zero, or negative disables the published retention rule.
	KeepVersions *int `yaml:"keep_versions,omitempty"`

	// KeepDrafts is the number of draft versions to keep.
	// Zero deletes every draft. Unset or negative disables the rule.
	KeepDrafts *int `yaml:"keep_drafts,omitempty"`

	// KeepRedirects keeps one published version per prior URL of a
	// path-addressed record.
	KeepRedirects *bool `yaml:"keep_redirects,omitempty"`

	// DeleteLimit caps the versions selected per rule in one sweep.
	// Default: 100
	DeleteLimit *int `yaml:"delete_limit,omitempty"`
}

// merge fills unset fields of p from fallback.
func (p PolicyConfig) merge(fallback PolicyConfig) PolicyConfig {
	if p.KeepVersions == nil {
		p.KeepVersions = fallback.KeepVersions
	}
	if p.KeepDrafts == nil {
		p.KeepDrafts = fallback.KeepDrafts
	}
	if p.KeepRedirects == nil {
		p.KeepRedirects = fallback.KeepRedirects
	}
	if p.DeleteLimit == nil {
		p.DeleteLimit = fallback.DeleteLimit
	}
	return p
}

// PolicyFor returns the effective policy for a type given its resolution
// chain, leaf first (see schema.Resolution.Chain).
func (r RetentionConfig) PolicyFor(chain []string) PolicyConfig {
	var policy PolicyConfig
	for _, name := range chain {
		if layer, ok := r.Types[name]; ok {
			policy = policy.merge(layer)
		}
	}
	return policy.merge(r.Defaults)
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
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served by "run".
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is the address of the metrics HTTP server.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "truncator"
	Namespace string `yaml:"namespace"`
}

// IsEnabled reports whether metrics are enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
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
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "truncator"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
