package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/output"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent delivery history, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		logs, err := db.RecentSendLogs(cmd.Context(), limit)
		if err != nil {
			return err
		}

		loc, _ := cfg.Schedule.Location()
		return emit(cmd, func(format output.Format) (string, error) {
			return output.SendLogs(format, logs, loc)
		})
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 100, "maximum entries to show")
	addOutputFlags(logsCmd)
	rootCmd.AddCommand(logsCmd)
}
