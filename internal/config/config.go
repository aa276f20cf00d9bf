// Package config loads service configuration from environment variables.
// Values are read once at startup and validated together so every problem
// is reported in one pass.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Load       LoadConfig
	Validation ValidationConfig
	Export     ExportConfig
	Security   SecurityConfig
	Rate       RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds ordinary API requests. Bulk loads use
	// Load.Timeout instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is one of mongo, postgres, memory (default: mongo)
	Backend string `env:"STORE_BACKEND" default:"mongo"`

	// ConnectTimeout bounds the initial connect and ping (default: 10s)
	ConnectTimeout time.Duration `env:"STORE_CONNECT_TIMEOUT" default:"10s"`
}

// MongoConfig locates the patient collection. URI wins over the discrete
// host and credential settings.
type MongoConfig struct {
	URI        string `env:"MONGO_URI"`
	Host       string `env:"MONGO_HOST" default:"localhost"`
	Port       int    `env:"MONGO_PORT" default:"27017"`
	User       string `env:"MONGO_USER" envAlt:"MONGO_INITDB_ROOT_USERNAME"`
	Password   string `env:"MONGO_PASSWORD" envAlt:"MONGO_INITDB_ROOT_PASSWORD"`
	AuthSource string `env:"MONGO_AUTH_SOURCE" default:"admin"`
	Database   string `env:"MONGO_DB" default:"medical_db"`
	Collection string `env:"MONGO_COLLECTION" default:"patients"`
}

// PostgresConfig holds pool settings for the postgres backend.
type PostgresConfig struct {
	// URL supports both DATABASE_URL and DB_URL
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoadConfig holds bulk load settings.
type LoadConfig struct {
	// CSVPath is the file loaded when none is given (default: ./data/healthcare_dataset.csv)
	CSVPath string `env:"LOAD_CSV_PATH" default:"./data/healthcare_dataset.csv"`

	// BatchSize is the number of records per insert (default: 1000)
	BatchSize int `env:"LOAD_BATCH_SIZE" default:"1000"`

	// MaxFileSize is the largest accepted CSV in bytes (default: 100MB)
	MaxFileSize int64 `env:"LOAD_MAX_FILE_SIZE" default:"104857600"`

	// Timeout bounds a whole load (default: 10m)
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"10m"`

	// MaxWait is how long a load waits for a running one to finish (default: 5s)
	MaxWait time.Duration `env:"LOAD_MAX_WAIT" default:"5s"`
}

// ValidationConfig controls record validation.
type ValidationConfig struct {
	// AccumulateErrors reports every bad field instead of the first one.
	AccumulateErrors bool `env:"VALIDATION_ACCUMULATE_ERRORS" default:"false"`
}

// ExportConfig controls file exports.
type ExportConfig struct {
	Dir string `env:"EXPORT_DIR" default:"data"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey protects mutating routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every API route (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File receives a copy of every log line; "none" disables it
	// (default: logs/migration_report.log)
	File string `env:"LOG_FILE" default:"logs/migration_report.log"`
}

// LogFile returns the configured log file path, or "" when disabled.
func (c *LoggingConfig) LogFile() string {
	if strings.EqualFold(c.File, "none") {
		return ""
	}
	return c.File
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
