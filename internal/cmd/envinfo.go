package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/config"
	"github.com/wishmail/wishmail/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information. Secrets are reported as set or not set.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		logger := observability.CLILogger

		logger.Info("=== wishmail Environment Information ===")
		logger.Info("")

		// Application Info
		logger.Info("Application:")
		logger.Info("  Name:       " + config.AppName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		// SSOT Info
		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		// Runtime Info
		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg, err := loadConfig()
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		logger.Info("Configuration:")
		logger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		logger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		logger.Info("  Admin Token:    " + secretStatus(cfg.Server.AdminToken))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		logger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			logger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		logger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		logger.Info("")

		// Mail
		logger.Info("Mail:")
		logger.Info(fmt.Sprintf("  SMTP Server:    %s:%d", cfg.Mail.Server, cfg.Mail.Port), zap.String("smtp_server", cfg.Mail.Server))
		logger.Info("  Sender:         " + cfg.Mail.User)
		logger.Info("  From Name:      " + cfg.Mail.FromName)
		logger.Info("  Auth Code:      " + secretStatus(cfg.Mail.AuthCode))
		logger.Info("  Timeout:        " + cfg.Mail.Timeout.String())
		logger.Info("")

		// Schedule
		logger.Info("Schedule:")
		logger.Info("  Send Time:      "+cfg.Schedule.SendTime, zap.String("send_time", cfg.Schedule.SendTime))
		logger.Info("  Timezone:       "+cfg.Schedule.Timezone, zap.String("timezone", cfg.Schedule.Timezone))
		logger.Info("")

		// Rate limits
		logger.Info("Rate Limits:")
		logger.Info(fmt.Sprintf("  Per Hour:       %d", cfg.RateLimit.MaxPerHour), zap.Int("max_per_hour", cfg.RateLimit.MaxPerHour))
		logger.Info(fmt.Sprintf("  Per Day:        %d", cfg.RateLimit.MaxPerDay), zap.Int("max_per_day", cfg.RateLimit.MaxPerDay))
		logger.Info("  Cooldown:       " + cfg.RateLimit.Cooldown.String())
		logger.Info("  Min Interval:   " + cfg.RateLimit.MinInterval.String())
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func secretStatus(value string) string {
	if strings.TrimSpace(value) != "" {
		return "(set)"
	}
	return "(not set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
