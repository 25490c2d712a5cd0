package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/core/store"
	"github.com/wishmail/wishmail/internal/output"
)

var wishesCmd = &cobra.Command{
	Use:   "wishes",
	Short: "Manage the greeting catalog",
}

var wishesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a wish to the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		category, _ := cmd.Flags().GetString("category")

		_, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		wish, err := db.AddWish(cmd.Context(), content, category, time.Now())
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errors.New("that wish is already in the catalog")
			}
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ Added wish %d (%s)\n", wish.ID, wish.Category)
		return err
	},
}

var wishesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		_, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		wishes, err := db.ListWishes(cmd.Context(), all)
		if err != nil {
			return err
		}
		return emit(cmd, func(format output.Format) (string, error) {
			return output.Wishes(format, wishes)
		})
	},
}

var wishesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import wishes from a YAML catalog",
	Long: `Import wishes from a YAML document of the form:

  wishes:
    - content: 生日快乐！
      category: general
      active: true

Entries already in the catalog are skipped. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openStoreFromConfig(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		in := cmd.InOrStdin()
		if args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close() // nolint:errcheck // read-only
			in = file
		}

		result, err := db.ImportWishes(cmd.Context(), in, time.Now())
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d wish(es), skipped %d duplicate(s)\n", result.Added, result.Skipped)
		return err
	},
}

func wishToggleCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid wish id %q", args[0])
			}

			_, db, err := openStoreFromConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() // nolint:errcheck // best-effort cleanup

			if err := db.SetWishActive(cmd.Context(), id, active); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no wish with id %d", id)
				}
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ Wish %d %sd\n", id, use)
			return err
		},
	}
}

func init() {
	wishesAddCmd.Flags().String("content", "", "wish text, 5 to 500 characters")
	wishesAddCmd.Flags().String("category", "general", "catalog category")
	_ = wishesAddCmd.MarkFlagRequired("content")

	wishesListCmd.Flags().Bool("all", false, "include disabled wishes")
	addOutputFlags(wishesListCmd)

	wishesCmd.AddCommand(
		wishesAddCmd,
		wishesListCmd,
		wishesImportCmd,
		wishToggleCmd("enable", "Put a wish back into rotation", true),
		wishToggleCmd("disable", "Take a wish out of rotation", false),
	)
	rootCmd.AddCommand(wishesCmd)
}
