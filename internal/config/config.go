// Package config provides configuration management for the domain hub.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// AuthConfig contains principal extraction settings.
// The hub only consumes an opaque authenticated principal; identity
// management lives in the external provider that mints the tokens.
type AuthConfig struct {
	// SigningKey verifies inbound bearer tokens (HS256).
	SigningKey string `mapstructure:"signing_key"`

	// DevPrincipalHeader, when set, trusts the named header as the
	// principal instead of requiring a token. Development only.
	DevPrincipalHeader string `mapstructure:"dev_principal_header"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// StreamConfig contains realtime session channel settings.
type StreamConfig struct {
	// KeepaliveInterval is the idle ping period on each session socket.
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`

	// WriteTimeout bounds a single frame write to a session.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// SendBuffer is the per-session outbound queue depth; a session that
	// cannot keep up is disconnected and must reconnect with a full reload.
	SendBuffer int `mapstructure:"send_buffer"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	FanoutPoolSize int `mapstructure:"fanout_pool_size"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/hubd")

	// Environment variable override. No prefix: uses standard names like
	// DATABASE_URL, SERVER_PORT, LOG_LEVEL.
	// Maps nested config: database.max_conns → DATABASE_MAX_CONNS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" && c.Auth.DevPrincipalHeader == "" {
		return fmt.Errorf("auth.signing_key must be set (or auth.dev_principal_header for development)")
	}
	if c.Stream.SendBuffer <= 0 {
		return fmt.Errorf("stream.send_buffer must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})

	// Database
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hubd")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "hubd")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Auth
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.dev_principal_header", "")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Stream
	v.SetDefault("stream.keepalive_interval", "30s")
	v.SetDefault("stream.write_timeout", "10s")
	v.SetDefault("stream.send_buffer", 64)

	// Worker pool
	v.SetDefault("worker.fanout_pool_size", 50)
}
