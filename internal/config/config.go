package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the optional config file, then
// WISHMAIL_* environment variables (plus the legacy unprefixed names).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Mail      MailConfig      `mapstructure:"mail"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AdminToken guards the /admin routes. Empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// MailConfig contains SMTP delivery settings.
type MailConfig struct {
	Server   string        `mapstructure:"server"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	AuthCode string        `mapstructure:"auth_code"`
	FromName string        `mapstructure:"from_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ScheduleConfig controls when the daily greeting job fires.
type ScheduleConfig struct {
	// SendTime is the local wall-clock time, HH:MM.
	SendTime string `mapstructure:"send_time"`
	// Timezone is an IANA zone name; it also defines calendar days for the
	// rate limiter's daily window and for birthday matching.
	Timezone string `mapstructure:"timezone"`
}

// RateLimitConfig holds the outbound email throttling limits.
type RateLimitConfig struct {
	MaxPerHour  int           `mapstructure:"max_per_hour"`
	MaxPerDay   int           `mapstructure:"max_per_day"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level (simple, structured)
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the exporter's loopback port. The server proxies it at /metrics.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
