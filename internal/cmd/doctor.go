package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/config"
	errwrap "github.com/wishmail/wishmail/internal/errors"
	"github.com/wishmail/wishmail/internal/observability"
	"github.com/wishmail/wishmail/internal/scheduler"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := observability.CLILogger
		logger.Info("=== " + config.AppName + " doctor ===")
		logger.Info("")
		logger.Info("Running diagnostic checks...")
		logger.Info("")

		allChecks := true
		totalChecks := 8

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			logger.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			logger.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Gofulmen and Crucible
		version := crucible.GetVersion()
		if version.Gofulmen != "" && version.Crucible != "" {
			logger.Info(fmt.Sprintf("[2/%d] Checking Gofulmen access... ✅ v%s (crucible v%s)", totalChecks, version.Gofulmen, version.Crucible),
				zap.String("gofulmen_version", version.Gofulmen),
				zap.String("crucible_version", version.Crucible))
		} else {
			logger.Error(fmt.Sprintf("[2/%d] Checking Gofulmen access... ❌ version metadata unavailable", totalChecks))
			allChecks = false
		}

		// Check 3: Config directory
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			logger.Error(fmt.Sprintf("[3/%d] Checking config directory... ❌ Cannot resolve config directory", totalChecks))
			ExitWithCode(logger, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
		}
		configDir := filepath.Dir(configPath)
		logger.Info(fmt.Sprintf("[3/%d] Checking config directory... ✅ %s (config file %s)", totalChecks, configDir, existenceStatus(fileExists(configPath))),
			zap.String("config_dir", configDir))

		// Check 4: Configuration
		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			logger.Error(fmt.Sprintf("[4/%d] Checking configuration... ❌ %v", totalChecks, cfgErr))
			allChecks = false
		} else {
			logger.Info(fmt.Sprintf("[4/%d] Checking configuration... ✅ valid", totalChecks))
		}

		// Check 5: Mail credentials
		switch {
		case cfgErr != nil:
			logger.Warn(fmt.Sprintf("[5/%d] Checking mail credentials... ⚠️  skipped (config not loaded)", totalChecks))
		case cfg.ValidateMail() != nil:
			logger.Warn(fmt.Sprintf("[5/%d] Checking mail credentials... ⚠️  %v", totalChecks, cfg.ValidateMail()))
			logger.Info(fmt.Sprintf("       Set %s and %s, or run '%s doctor init'.",
				config.EnvName("mail.user"), config.EnvName("mail.auth_code"), config.AppName))
			allChecks = false
		default:
			logger.Info(fmt.Sprintf("[5/%d] Checking mail credentials... ✅ %s via %s:%d", totalChecks, cfg.Mail.User, cfg.Mail.Server, cfg.Mail.Port),
				zap.String("smtp_server", cfg.Mail.Server),
				zap.Int("smtp_port", cfg.Mail.Port))
		}

		// Check 6: Schedule
		if cfgErr != nil {
			logger.Warn(fmt.Sprintf("[6/%d] Checking schedule... ⚠️  skipped (config not loaded)", totalChecks))
		} else {
			loc, _ := cfg.Schedule.Location()
			hour, minute, _ := cfg.Schedule.Clock()
			next, err := scheduler.NextFire(hour, minute, loc, time.Now())
			if err != nil {
				logger.Error(fmt.Sprintf("[6/%d] Checking schedule... ❌ %v", totalChecks, err))
				allChecks = false
			} else {
				logger.Info(fmt.Sprintf("[6/%d] Checking schedule... ✅ %s %s (next %s)", totalChecks, cfg.Schedule.SendTime, loc, next.Format(time.RFC3339)),
					zap.String("send_time", cfg.Schedule.SendTime),
					zap.String("timezone", loc.String()),
					zap.Time("next_run", next))
			}
		}

		// Check 7: Database file
		if cfgErr != nil {
			logger.Warn(fmt.Sprintf("[7/%d] Checking database... ⚠️  skipped (config not loaded)", totalChecks))
		} else if cfg.Store.URL != "" {
			logger.Info(fmt.Sprintf("[7/%d] Checking database... ✅ %s (remote)", totalChecks, cfg.Store.URL),
				zap.String("db_url", cfg.Store.URL))
		} else {
			absPath := storeFilePath(cfg)
			if info, statErr := os.Stat(absPath); statErr == nil {
				logger.Info(fmt.Sprintf("[7/%d] Checking database... ✅ %s (%s)", totalChecks, absPath, formatFileSize(info.Size())),
					zap.String("db_path", absPath),
					zap.Int64("db_size", info.Size()))
			} else if os.IsNotExist(statErr) {
				logger.Warn(fmt.Sprintf("[7/%d] Checking database... ⚠️  %s (not created yet)", totalChecks, absPath),
					zap.String("db_path", absPath))
			} else {
				logger.Warn(fmt.Sprintf("[7/%d] Checking database... ⚠️  %s (error: %v)", totalChecks, absPath, statErr),
					zap.String("db_path", absPath),
					zap.Error(statErr))
				allChecks = false
			}
		}

		// Check 8: Store contents
		if cfgErr != nil {
			logger.Warn(fmt.Sprintf("[8/%d] Checking recipients... ⚠️  skipped (config not loaded)", totalChecks))
		} else if db, storeErr := openStore(ctx, cfg); storeErr != nil {
			logger.Error(fmt.Sprintf("[8/%d] Checking recipients... ❌ cannot open store", totalChecks), zap.Error(storeErr))
			allChecks = false
		} else {
			defer db.Close() //nolint:errcheck
			loc, _ := cfg.Schedule.Location()
			stats, statsErr := db.UserStats(ctx, time.Now().In(loc))
			wishes, wishErr := db.ListWishes(ctx, false)
			switch {
			case statsErr != nil || wishErr != nil:
				logger.Warn(fmt.Sprintf("[8/%d] Checking recipients... ⚠️  cannot read store", totalChecks),
					zap.NamedError("users_error", statsErr),
					zap.NamedError("wishes_error", wishErr))
				allChecks = false
			case stats.Total == 0:
				logger.Warn(fmt.Sprintf("[8/%d] Checking recipients... ⚠️  no users yet (run '%s users add')", totalChecks, config.AppName))
			default:
				lastSend := "no sends yet"
				if logs, err := db.RecentSendLogs(ctx, 1); err == nil && len(logs) > 0 {
					lastSend = "last send " + formatTimeAgo(logs[0].SentAt)
				}
				logger.Info(fmt.Sprintf("[8/%d] Checking recipients... ✅ %d users, %d today, %d active wishes, %s",
					totalChecks, stats.Total, stats.BirthdaysToday, len(wishes), lastSend),
					zap.Int("users", stats.Total),
					zap.Int("birthdays_today", stats.BirthdaysToday),
					zap.Int("active_wishes", len(wishes)))
			}
		}

		logger.Info("")
		if allChecks {
			logger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", config.AppName))
		} else {
			logger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		logger.Info("")
		logger.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce    bool
	doctorInitUser     string
	doctorInitAuthCode string
	doctorResetConfig  bool
	doctorResetData    bool
	doctorResetAll     bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		authCode := strings.TrimSpace(doctorInitAuthCode)
		if strings.EqualFold(authCode, "prompt") {
			code, err := promptForValue("Enter SMTP auth code (leave blank to skip): ")
			if err != nil {
				return err
			}
			authCode = code
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		// Config files holding a secret are owner-only.
		mode := os.FileMode(0644)
		if authCode != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(doctorInitUser, authCode)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		configPath := config.DefaultConfigPath()

		logger.Info("Configuration:")
		logger.Info(fmt.Sprintf("  Config file:   %s (%s)", configPath, existenceStatus(fileExists(configPath))))

		cfg, err := loadConfig()
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return nil
		}

		if cfg.Store.URL != "" {
			logger.Info(fmt.Sprintf("  Database:      %s (remote)", cfg.Store.URL))
		} else {
			absPath := storeFilePath(cfg)
			if info, statErr := os.Stat(absPath); statErr == nil {
				logger.Info(fmt.Sprintf("  Database:      %s (%s)", absPath, formatFileSize(info.Size())))
			} else if os.IsNotExist(statErr) {
				logger.Info(fmt.Sprintf("  Database:      %s (not created yet)", absPath))
			} else {
				logger.Warn("Database status error", zap.String("db_path", absPath), zap.Error(statErr))
			}
		}

		logger.Info("")
		logger.Info("Environment:")
		for _, key := range []string{"mail.user", "mail.auth_code", "server.admin_token", "store.auth_token"} {
			name := config.EnvName(key)
			logger.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}

		logger.Info("")
		logger.Info("Effective Settings:")
		logger.Info(fmt.Sprintf("  schedule: %s %s", cfg.Schedule.SendTime, cfg.Schedule.Timezone))
		logger.Info(fmt.Sprintf("  rate_limit: %d/hour, %d/day, cooldown %s, min interval %s",
			cfg.RateLimit.MaxPerHour, cfg.RateLimit.MaxPerDay, cfg.RateLimit.Cooldown, cfg.RateLimit.MinInterval))
		logger.Info(fmt.Sprintf("  admin api: %t", strings.TrimSpace(cfg.Server.AdminToken) != ""))
		logger.Info(fmt.Sprintf("  metrics.enabled: %t", cfg.Metrics.Enabled))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath := storeFilePath(cfg)
			if err := os.Remove(absPath); err == nil {
				observability.CLILogger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if cfgFile != "" {
			configPath = cfgFile
		}
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateMail(); err != nil {
			return &configError{err: err}
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitUser, "mail-user", "", "sender mailbox, e.g. you@163.com")
	doctorInitCmd.Flags().StringVar(&doctorInitAuthCode, "auth-code", "", "SMTP auth code or 'prompt' to enter it")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

// storeFilePath resolves the local database file to an absolute path.
func storeFilePath(cfg *config.Config) string {
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	absPath, _ := filepath.Abs(dbPath)
	return absPath
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatTimeAgo returns a human-readable relative time
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func buildInitConfig(mailUser, authCode string) string {
	lines := []string{
		"# wishmail config - created by 'wishmail doctor init'",
		"server:",
		"  host: localhost",
		"  port: 8080",
		"  # admin_token: \"\"  # Set via " + config.EnvName("server.admin_token") + " to enable /admin",
		"mail:",
		"  server: smtp.163.com",
		"  port: 465",
	}

	if user := strings.TrimSpace(mailUser); user != "" {
		lines = append(lines, fmt.Sprintf("  user: %q", user))
	} else {
		lines = append(lines, "  # user: \"\"  # Set via "+config.EnvName("mail.user")+" or uncomment")
	}
	if authCode != "" {
		lines = append(lines, fmt.Sprintf("  auth_code: %q", authCode))
	} else {
		lines = append(lines, "  # auth_code: \"\"  # Set via "+config.EnvName("mail.auth_code")+" or uncomment")
	}

	lines = append(lines,
		"  from_name: Birthday Wishes",
		"schedule:",
		"  send_time: \"09:00\"",
		"  timezone: Asia/Shanghai",
		"rate_limit:",
		"  max_per_hour: 50",
		"  max_per_day: 200",
		"  cooldown: 5m",
		"  min_interval: 2s",
	)

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
