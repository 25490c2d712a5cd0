package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/adminclient"
	"github.com/wishmail/wishmail/internal/config"
	"github.com/wishmail/wishmail/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and manage a running server's send limiter",
	Long: `Inspect and manage the limiter of a running "serve" instance through its
admin API. The server must have server.admin_token set.`,
}

var rateLimitStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show hourly and daily usage, totals and active cooldowns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient(cmd)
		if err != nil {
			return err
		}
		stats, err := client.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, func(format output.Format) (string, error) {
			return output.LimiterStats(format, stats)
		})
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero the hourly and daily windows and clear every cooldown",
	Long: `Zero the hourly and daily windows and clear every cooldown. Lifetime
sent and blocked totals are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset lifts every limit until new sends are counted; pass --yes to confirm")
		}

		client, err := newAdminClient(cmd)
		if err != nil {
			return err
		}
		result, err := client.Reset(cmd.Context())
		if err != nil {
			return err
		}

		return emit(cmd, func(format output.Format) (string, error) {
			if format == output.FormatJSON {
				return output.JSON(result)
			}
			rendered, err := output.LimiterStats(format, result.Stats)
			if err != nil {
				return "", err
			}
			return "Rate limiter reset.\n" + rendered, nil
		})
	},
}

var rateLimitClearCmd = &cobra.Command{
	Use:   "clear-cooldown <recipient>",
	Short: "Let one recipient be mailed again before the cooldown ends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient(cmd)
		if err != nil {
			return err
		}
		result, err := client.ClearCooldown(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return emit(cmd, func(format output.Format) (string, error) {
			if format == output.FormatJSON {
				return output.JSON(result)
			}
			status := "no active cooldown"
			if result.Cleared {
				status = "cooldown cleared"
			}
			lines := []string{"Recipient Cooldown", "", fmt.Sprintf("%s: %s", result.Recipient, status)}
			return ascii.DrawBox(strings.Join(lines, "\n"), 0), nil
		})
	},
}

// adminToken prefers an explicit flag value over server.admin_token.
func adminToken(cfg *config.Config, flagValue string) string {
	if token := strings.TrimSpace(flagValue); token != "" {
		return token
	}
	return cfg.Server.AdminToken
}

// newAdminClient targets --server, or the configured listen address.
func newAdminClient(cmd *cobra.Command) (*adminclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	serverURL, _ := cmd.Flags().GetString("server")
	if strings.TrimSpace(serverURL) == "" {
		serverURL = "http://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	}
	token, _ := cmd.Flags().GetString("token")
	return adminclient.New(serverURL, adminToken(cfg, token)), nil
}

func init() {
	for _, c := range []*cobra.Command{rateLimitStatsCmd, rateLimitResetCmd, rateLimitClearCmd} {
		addOutputFlags(c)
		rateLimitCmd.AddCommand(c)
	}
	rateLimitCmd.PersistentFlags().String("server", "", "server base URL (default http://<server.host>:<server.port>)")
	rateLimitCmd.PersistentFlags().String("token", "", "admin token (default server.admin_token)")
	rateLimitResetCmd.Flags().Bool("yes", false, "confirm the reset")

	rootCmd.AddCommand(rateLimitCmd)
}
