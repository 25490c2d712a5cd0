package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/config"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
	"github.com/wishmail/wishmail/internal/core/store"
	errwrap "github.com/wishmail/wishmail/internal/errors"
	"github.com/wishmail/wishmail/internal/mailer"
	"github.com/wishmail/wishmail/internal/observability"
	"github.com/wishmail/wishmail/internal/scheduler"
	"github.com/wishmail/wishmail/internal/server"
	"github.com/wishmail/wishmail/internal/server/handlers"
)

var serveRunNow bool

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// storeHealthChecker pings the database.
type storeHealthChecker struct {
	db *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.db == nil || s.db.DB == nil {
		return store.ErrNotInitialized
	}
	return s.db.DB.PingContext(ctx)
}

// schedulerHealthChecker fails once the cron loop has no next fire time.
type schedulerHealthChecker struct {
	sched *scheduler.Scheduler
}

func (s schedulerHealthChecker) CheckHealth(ctx context.Context) error {
	if s.sched.Next().IsZero() {
		return errors.New("scheduler has no upcoming run")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler and the HTTP server",
	Long: `Run the daily greeting job on its schedule and serve health, version,
metrics and admin endpoints.

The scheduler, the admin API and test emails share one rate limiter, so the
limits hold across every path that sends mail.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (limit changes need a restart)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateMail(); err != nil {
			return &configError{err: err}
		}
		loc, _ := cfg.Schedule.Location()
		hour, minute, _ := cfg.Schedule.Clock()

		observability.InitServerLogger(config.AppName, cfg.Logging.Level, cfg.Logging.Profile)
		handlers.SetAppName(config.AppName)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("send_time", cfg.Schedule.SendTime),
			zap.String("timezone", loc.String()))

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "store initialization failed")
		}

		if stats, err := db.UserStats(cmd.Context(), time.Now().In(loc)); err == nil {
			logger.Info("Recipient summary",
				zap.Int("users", stats.Total),
				zap.Int("birthdays_today", stats.BirthdaysToday),
				zap.Int("birthdays_this_month", stats.BirthdaysThisMonth))
		} else {
			logger.Warn("Could not read recipient summary", zap.Error(err))
		}

		limiter := ratelimit.New(cfg.RateLimit.Limits(), ratelimit.WithLocation(loc))

		transport, err := mailer.NewSMTPTransport(cfg.Mail)
		if err != nil {
			_ = db.Close()
			return &configError{err: err}
		}
		svc, err := mailer.NewService(transport, limiter,
			mailer.WithSender(cfg.Mail.FromName, cfg.Mail.User),
			mailer.WithLogger(logger))
		if err != nil {
			_ = db.Close()
			return err
		}

		job, err := scheduler.NewJob(db, svc,
			scheduler.WithJobLocation(loc),
			scheduler.WithJobLogger(logger))
		if err != nil {
			_ = db.Close()
			return err
		}
		sched, err := scheduler.New(job, hour, minute, loc, logger)
		if err != nil {
			_ = db.Close()
			return &configError{err: err}
		}

		// With health checks disabled the probes still answer, but report
		// liveness only.
		hm := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Health.Enabled {
			hm.RegisterChecker("store", storeHealthChecker{db: db})
			hm.RegisterChecker("scheduler", schedulerHealthChecker{sched: sched})
			if cfg.Metrics.Enabled {
				hm.RegisterChecker("telemetry", telemetryHealthChecker{})
			}
		}

		srv := server.New(cfg.Server.Host, cfg.Server.Port,
			server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
			server.WithHealthManager(hm),
			server.WithAdmin(cfg.Server.AdminToken, limiter, svc))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		jobCtx, cancelJobs := context.WithCancel(context.Background())

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Metrics exporter shutdown failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "store close failed")
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Stopping scheduler...")
			done := sched.Stop()
			select {
			case <-done.Done():
			case <-time.After(shutdownTimeout):
				logger.Warn("Greeting job still running, cancelling it")
				cancelJobs()
				<-done.Done()
			}
			cancelJobs()
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}

			logger.Info("Configuration reloaded; rate limits and schedule apply on restart",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		sched.Start(jobCtx)

		if serveRunNow {
			go func() {
				if _, err := job.Run(jobCtx, scheduler.TriggerManual); err != nil {
					logger.Error("Startup greeting run failed", zap.Error(err))
				}
			}()
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
				return
			}
			errChan <- nil
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "also run the greeting job once at startup")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
