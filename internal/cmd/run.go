package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/config"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
	"github.com/wishmail/wishmail/internal/mailer"
	"github.com/wishmail/wishmail/internal/observability"
	"github.com/wishmail/wishmail/internal/output"
	"github.com/wishmail/wishmail/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily greeting job once, now",
	Long: `Greet everyone whose birthday is today (in schedule.timezone) and who has
not been greeted yet this year, then print a summary.

The limiter is local to this process. While "serve" is running it keeps its
own counters, so use the admin API to inspect those.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		loc, _ := cfg.Schedule.Location()
		svc, err := newMailService(cfg, loc)
		if err != nil {
			return err
		}

		job, err := scheduler.NewJob(db, svc, scheduler.WithJobLocation(loc))
		if err != nil {
			return err
		}

		result, err := job.Run(cmd.Context(), scheduler.TriggerManual)
		if err != nil {
			return err
		}

		return emit(cmd, func(format output.Format) (string, error) {
			return output.JobResult(format, result)
		})
	},
}

// newMailService builds an SMTP-backed service with a fresh limiter in loc.
func newMailService(cfg *config.Config, loc *time.Location) (*mailer.Service, error) {
	if err := cfg.ValidateMail(); err != nil {
		return nil, &configError{err: err}
	}

	transport, err := mailer.NewSMTPTransport(cfg.Mail)
	if err != nil {
		return nil, &configError{err: err}
	}

	limiter := ratelimit.New(cfg.RateLimit.Limits(), ratelimit.WithLocation(loc))
	return mailer.NewService(transport, limiter,
		mailer.WithSender(cfg.Mail.FromName, cfg.Mail.User),
		mailer.WithLogger(observability.Logger()))
}

func init() {
	rootCmd.AddCommand(runCmd)
	addOutputFlags(runCmd)
}
