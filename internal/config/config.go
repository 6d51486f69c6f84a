// Package config provides configuration management for Hooktide.
package config

import (
	"strconv"
	"time"
)

// Config is the root configuration structure for Hooktide.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageSection  `mapstructure:"storage"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Retention RetentionConfig `mapstructure:"retention"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Enable CORS
	CORS CORSConfig `mapstructure:"cors"`

	// Request timeout
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enable CORS
	Enabled bool `mapstructure:"enabled"`

	// Allowed origins (use ["*"] for all)
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Allow credentials
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// Max age for preflight cache
	MaxAge time.Duration `mapstructure:"max_age"`
}

// AllowedMethods returns the methods exposed to preflight requests.
func (c CORSConfig) AllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
}

// AllowedHeaders returns the headers exposed to preflight requests.
func (c CORSConfig) AllowedHeaders() []string {
	return []string{"Authorization", "Content-Type", "X-Request-ID", "X-Webhook-Signature"}
}

// StorageSection selects the primary backend and an optional fallback.
type StorageSection struct {
	Primary StorageConfig `mapstructure:"primary"`

	// Fallback is only consulted when EnableFallback is true.
	Fallback       StorageConfig `mapstructure:"fallback"`
	EnableFallback bool          `mapstructure:"enable_fallback"`
}

// BackendType identifies a storage backend family.
type BackendType string

const (
	BackendSQLite        BackendType = "sqlite"
	BackendElasticsearch BackendType = "elasticsearch"
)

// StorageConfig holds connection parameters for one storage backend.
type StorageConfig struct {
	// Backend type: "sqlite" or "elasticsearch"
	Type BackendType `mapstructure:"type"`

	// Path to the SQLite database file (":memory:" for in-memory)
	Path string `mapstructure:"path"`

	// Elasticsearch node addresses
	Addresses []string `mapstructure:"addresses"`

	// Elasticsearch credentials (optional)
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Elasticsearch index name
	Index string `mapstructure:"index"`

	// Per-request timeout for backend calls
	Timeout time.Duration `mapstructure:"timeout"`

	// SQLite tuning
	WALMode      bool          `mapstructure:"wal_mode"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
}

// WebhookConfig holds inbound webhook settings.
type WebhookConfig struct {
	// Shared secret for HMAC signature verification (empty disables verification)
	Secret string `mapstructure:"secret"`

	// Header carrying the signature
	SignatureHeader string `mapstructure:"signature_header"`
}

// RealtimeConfig holds WebSocket feed settings.
type RealtimeConfig struct {
	// Enable the WebSocket feed
	Enabled bool `mapstructure:"enabled"`

	// Interval between heartbeat sweeps
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// Per-connection outbound buffer size
	SendBufferSize int `mapstructure:"send_buffer_size"`
}

// RetentionConfig holds scheduled cleanup settings.
type RetentionConfig struct {
	// Enable scheduled cleanup
	Enabled bool `mapstructure:"enabled"`

	// Delete messages received more than this many days ago
	Days int `mapstructure:"days"`

	// Cron schedule for the cleanup job
	Schedule string `mapstructure:"schedule"`
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Admin username
	AdminUsername string `mapstructure:"admin_username"`

	// Bcrypt hash of the admin password
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// JWTConfig holds JWT settings.
type JWTConfig struct {
	// Secret key for signing tokens (required, min 32 chars)
	Secret string `mapstructure:"secret"`

	// Access token lifetime
	AccessTTL time.Duration `mapstructure:"access_ttl"`

	// JWT issuer claim
	Issuer string `mapstructure:"issuer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include timestamp
	Timestamp bool `mapstructure:"timestamp"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}
