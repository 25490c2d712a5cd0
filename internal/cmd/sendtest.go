package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/adminclient"
	"github.com/wishmail/wishmail/internal/core"
)

var (
	sendTestServer string
	sendTestToken  string
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test <email>",
	Short: "Send a test greeting",
	Long: `Send the fixed test greeting to one address.

By default the mail goes out from this process through its own limiter. With
--server it is sent by a running "serve" instance, counting against the
shared limits there.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := core.NormalizeEmail(args[0])
		if err != nil {
			return err
		}

		if strings.TrimSpace(sendTestServer) != "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := adminclient.New(sendTestServer, adminToken(cfg, sendTestToken))
			if err := client.SendTest(cmd.Context(), email); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ Test email sent to %s via %s\n", email, client.BaseURL)
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		loc, _ := cfg.Schedule.Location()
		svc, err := newMailService(cfg, loc)
		if err != nil {
			return err
		}

		if err := svc.SendTest(cmd.Context(), email); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ Test email sent to %s\n", email)
		return err
	},
}

func init() {
	rootCmd.AddCommand(sendTestCmd)
	sendTestCmd.Flags().StringVar(&sendTestServer, "server", "", "send through a running server's admin API (e.g. http://127.0.0.1:8080)")
	sendTestCmd.Flags().StringVar(&sendTestToken, "token", "", "admin token (default server.admin_token)")
}
