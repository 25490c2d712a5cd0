// Package config provides centralized configuration management for wishmail.
// It layers built-in defaults, an optional YAML config file and environment
// variables through viper, then decodes into a typed Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/wishmail/wishmail/internal/core/ratelimit"
)

const (
	// AppName is used for config/data directory discovery and the env prefix.
	AppName = "wishmail"

	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "WISHMAIL"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// envAliases maps config keys to the unprefixed variable names older
// deployments used. The prefixed name always wins. Keys not listed here are
// still read from WISHMAIL_* through AutomaticEnv because every key has a default.
var envAliases = map[string][]string{
	"store.path":              {"DB_SQLITE_PATH"},
	"mail.server":             {"MAIL_SERVER"},
	"mail.port":               {"MAIL_PORT"},
	"mail.user":               {"MAIL_USER"},
	"mail.auth_code":          {"MAIL_AUTH_CODE"},
	"mail.from_name":          {"MAIL_FROM_NAME"},
	"schedule.send_time":      {"SEND_TIME"},
	"schedule.timezone":       {"TIMEZONE"},
	"rate_limit.max_per_hour": {"MAX_EMAILS_PER_HOUR"},
	"rate_limit.max_per_day":  {"MAX_EMAILS_PER_DAY"},
}

// legacySecondsEnv are unprefixed variables holding plain integer seconds.
var legacySecondsEnv = map[string]string{
	"rate_limit.cooldown":     "EMAIL_COOLDOWN_SECONDS",
	"rate_limit.min_interval": "MIN_EMAIL_INTERVAL",
}

// SetDefaults registers default values for every known key.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Mail defaults
	v.SetDefault("mail.server", "smtp.163.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.auth_code", "")
	v.SetDefault("mail.from_name", "Birthday Wishes")
	v.SetDefault("mail.timeout", "30s")

	// Schedule defaults
	v.SetDefault("schedule.send_time", "09:00")
	v.SetDefault("schedule.timezone", "Asia/Shanghai")

	// Rate limit defaults
	v.SetDefault("rate_limit.max_per_hour", ratelimit.DefaultLimits.MaxPerHour)
	v.SetDefault("rate_limit.max_per_day", ratelimit.DefaultLimits.MaxPerDay)
	v.SetDefault("rate_limit.cooldown", ratelimit.DefaultLimits.Cooldown.String())
	v.SetDefault("rate_limit.min_interval", ratelimit.DefaultLimits.MinInterval.String())

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// BindEnv wires WISHMAIL_* variables (and legacy aliases) to config keys.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{EnvName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// EnvName returns the prefixed environment variable for a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load decodes v into a Config, applies legacy overrides and validates it.
// The result is also stored for GetConfig.
func Load(v *viper.Viper) (*Config, error) {
	for key, name := range legacySecondsEnv {
		if os.Getenv(EnvName(key)) != "" {
			continue
		}
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		v.Set(key, (time.Duration(seconds) * time.Second).String())
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MaxPerHour <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.max_per_hour must be positive, got %d", c.RateLimit.MaxPerHour))
	}
	if c.RateLimit.MaxPerDay <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.max_per_day must be positive, got %d", c.RateLimit.MaxPerDay))
	}
	if c.RateLimit.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.cooldown must not be negative, got %s", c.RateLimit.Cooldown))
	}
	if c.RateLimit.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.min_interval must not be negative, got %s", c.RateLimit.MinInterval))
	}
	if _, _, err := c.Schedule.Clock(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail.port out of range: %d", c.Mail.Port))
	}

	return errors.Join(errs...)
}

// ValidateMail checks the settings needed to actually deliver email.
func (c *Config) ValidateMail() error {
	var errs []error
	if strings.TrimSpace(c.Mail.User) == "" {
		errs = append(errs, errors.New("mail.user is required (set WISHMAIL_MAIL_USER or MAIL_USER)"))
	}
	if strings.TrimSpace(c.Mail.AuthCode) == "" {
		errs = append(errs, errors.New("mail.auth_code is required (set WISHMAIL_MAIL_AUTH_CODE or MAIL_AUTH_CODE)"))
	}
	if strings.TrimSpace(c.Mail.Server) == "" {
		errs = append(errs, errors.New("mail.server is required"))
	}
	return errors.Join(errs...)
}

// Limits converts the rate limit settings for the limiter.
func (c RateLimitConfig) Limits() ratelimit.Limits {
	return ratelimit.Limits{
		MaxPerHour:  c.MaxPerHour,
		MaxPerDay:   c.MaxPerDay,
		Cooldown:    c.Cooldown,
		MinInterval: c.MinInterval,
	}
}

// Location resolves the configured time zone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: unknown zone %q: %w", name, err)
	}
	return loc, nil
}

// Clock parses SendTime into hour and minute.
func (s ScheduleConfig) Clock() (hour int, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s.SendTime))
	if err != nil {
		return 0, 0, fmt.Errorf("schedule.send_time must be HH:MM, got %q", s.SendTime)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
