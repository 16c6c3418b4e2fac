package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/pnpm-catalog/cmd"
	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/config"
	"github.com/thoreinstein/pnpm-catalog/internal/logging"
)

// newManager creates the backup engine for ws.
func newManager(c *cobra.Command, ws config.Workspace) *backup.Manager {
	return backup.NewManager(ws.Root,
		backup.WithBackupDir(ws.BackupDir),
		backup.WithLogger(logging.FromContext(c.Context())),
		backup.WithToolVersion(cmd.Version),
	)
}

// printHeader prints the command banner.
func printHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "%s %s\n", cyan("pnpm-catalog "+title), faint("[v"+cmd.Version+"]"))
}

// printCancelled reports a declined prompt.
func printCancelled(w io.Writer) {
	fmt.Fprintln(w, yellow("Operation cancelled."))
}
