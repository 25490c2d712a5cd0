package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/wishmail/wishmail/internal/config"
	"github.com/wishmail/wishmail/internal/output"
)

var (
	extended    bool
	versionJSON bool
)

// versionReport is the --json shape of the version command.
type versionReport struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for full details including Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if versionJSON {
			report := versionReport{Name: config.AppName, Version: versionInfo.Version}
			if extended {
				version := crucible.GetVersion()
				report.Commit = versionInfo.Commit
				report.BuildDate = versionInfo.BuildDate
				report.Go = runtime.Version()
				report.Gofulmen = version.Gofulmen
				report.Crucible = version.Crucible
			}
			rendered, err := output.JSON(report)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, rendered)
			return err
		}

		fmt.Fprintf(out, "%s %s\n", config.AppName, versionInfo.Version)
		if extended {
			fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
			fmt.Fprintf(out, "Built: %s\n", versionInfo.BuildDate)
			fmt.Fprintf(out, "Go: %s\n", runtime.Version())
			fmt.Fprintf(out, "\n")

			// Gofulmen and Crucible versions
			version := crucible.GetVersion()
			fmt.Fprintf(out, "Gofulmen: %s\n", version.Gofulmen)
			fmt.Fprintf(out, "Crucible: %s\n", version.Crucible)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version information as JSON")
}
