package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/core"
	"github.com/wishmail/wishmail/internal/core/store"
	"github.com/wishmail/wishmail/internal/output"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage greeting recipients",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recipient",
	Example: `  wishmail users add --name 张三 --email zhangsan@example.com --dob 1990-05-17
  wishmail users add --name Ana --email ana@example.com --dob 2003/1/7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawName, _ := cmd.Flags().GetString("name")
		rawEmail, _ := cmd.Flags().GetString("email")
		rawDOB, _ := cmd.Flags().GetString("dob")

		cfg, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		loc, _ := cfg.Schedule.Location()
		now := time.Now().In(loc)

		name, err := core.NormalizeName(rawName)
		if err != nil {
			return err
		}
		email, err := core.NormalizeEmail(rawEmail)
		if err != nil {
			return err
		}
		dob, err := core.ParseDOB(rawDOB, now)
		if err != nil {
			return err
		}

		user, err := db.AddUser(cmd.Context(), name, email, dob, now)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("a user with email %s already exists", email)
			}
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ Added %s <%s>, birthday %s (id %d)\n",
			user.Name, user.Email, user.DOB.Format(core.DateLayout), user.ID)
		return err
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipients in calendar order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		users, err := db.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, func(format output.Format) (string, error) {
			return output.Users(format, users)
		})
	},
}

var usersStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recipients and today's birthdays",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		loc, _ := cfg.Schedule.Location()
		stats, err := db.UserStats(cmd.Context(), time.Now().In(loc))
		if err != nil {
			return err
		}
		return emit(cmd, func(format output.Format) (string, error) {
			return output.UserStats(format, stats)
		})
	},
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove a recipient and their send history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := core.NormalizeEmail(args[0])
		if err != nil {
			return err
		}

		_, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		user, err := db.GetUserByEmail(cmd.Context(), email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no user with email %s", email)
			}
			return err
		}
		if err := db.DeleteUser(cmd.Context(), user.ID); err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "🗑  Removed %s <%s>\n", user.Name, user.Email)
		return err
	},
}

func init() {
	usersAddCmd.Flags().String("name", "", "display name used in the greeting")
	usersAddCmd.Flags().String("email", "", "recipient address")
	usersAddCmd.Flags().String("dob", "", "date of birth, YYYY-MM-DD")
	_ = usersAddCmd.MarkFlagRequired("name")
	_ = usersAddCmd.MarkFlagRequired("email")
	_ = usersAddCmd.MarkFlagRequired("dob")

	addOutputFlags(usersListCmd)
	addOutputFlags(usersStatsCmd)

	usersCmd.AddCommand(usersAddCmd, usersListCmd, usersStatsCmd, usersRemoveCmd)
	rootCmd.AddCommand(usersCmd)
}
