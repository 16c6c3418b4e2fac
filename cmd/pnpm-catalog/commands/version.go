package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/pnpm-catalog/cmd"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version, commit, and build date of pnpm-catalog.`,
	Run: func(c *cobra.Command, _ []string) {
		printVersion(c.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "pnpm-catalog version %s\n", cmd.Version)
	fmt.Fprintf(w, "  commit: %s\n", cmd.Commit)
	fmt.Fprintf(w, "  built:  %s\n", cmd.Date)
}
