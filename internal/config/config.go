// Package config provides centralized configuration management for the application.
// Settings come from struct-tag defaults, an optional YAML file named by
// CONFIG_FILE, then environment variables, in that order of precedence.
// Everything is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Dataset source kinds.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Dataset  DatasetConfig   `yaml:"dataset"`
	Database DatabaseConfig  `yaml:"database"`
	Query    QueryConfig     `yaml:"query"`
	Export   ExportConfig    `yaml:"export"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 5001)
	Port int `yaml:"port" env:"SERVER_PORT" envAlt:"PORT" default:"5001"`

	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining exports (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatasetConfig selects where the users dataset is loaded from.
type DatasetConfig struct {
	// Source is csv or postgres (default: csv)
	Source string `yaml:"source" env:"DATASET_SOURCE" default:"csv"`

	// Path is the CSV file read when Source is csv
	Path string `yaml:"path" env:"DATASET_PATH" envAlt:"CSV_FILE" default:"data/usuarios_inactivos_ufv.csv"`

	// Table is the table or view read when Source is postgres
	Table string `yaml:"table" env:"DATASET_TABLE" default:"usuarios_inactivos_ufv"`

	// OrderBy optionally fixes row order for the postgres source
	OrderBy string `yaml:"order_by" env:"DATASET_ORDER_BY"`

	// LoadTimeout bounds the one-time startup load (default: 2m)
	LoadTimeout time.Duration `yaml:"load_timeout" env:"DATASET_LOAD_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds database connection settings. Only used by the
// postgres dataset source.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `yaml:"max_conns" env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `yaml:"min_conns" env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
}

// QueryConfig holds listing defaults.
type QueryConfig struct {
	// DefaultPerPage is used when per_page is absent (default: 50)
	DefaultPerPage int `yaml:"default_per_page" env:"QUERY_DEFAULT_PER_PAGE" default:"50"`

	// MaxPerPage caps per_page; larger requests are clamped (default: 500)
	MaxPerPage int `yaml:"max_per_page" env:"QUERY_MAX_PER_PAGE" default:"500"`
}

// ExportConfig holds backup export settings.
type ExportConfig struct {
	// Entity names the dataset in backup filenames (default: usuarios_ufv)
	Entity string `yaml:"entity" env:"EXPORT_ENTITY" default:"usuarios_ufv"`

	// MaxConcurrent is the number of exports serialized at once (default: 4)
	MaxConcurrent int `yaml:"max_concurrent" env:"EXPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an export waits for a slot (default: 10s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"EXPORT_MAX_WAIT_TIME" default:"10s"`

	// MaxIDs caps how many ids one backup request may carry (default: 100000)
	MaxIDs int `yaml:"max_ids" env:"EXPORT_MAX_IDS" default:"100000"`

	// MaxBodyBytes caps the JSON body of a backup request (default: 8MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"EXPORT_MAX_BODY_BYTES" default:"8388608"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// ExportLimit is requests per minute for the backup endpoint (default: 20)
	ExportLimit int `yaml:"export_limit" env:"RATE_LIMIT_EXPORT" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `yaml:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`

	// CORSAllowedOrigins enables CORS for these origins; empty disables CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
