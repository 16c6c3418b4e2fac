package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/cli/prompt"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

var (
	undoList   bool
	undoClear  bool
	undoDelete string
	undoPick   bool
	undoYes    bool
	undoKeep   bool
	undoFormat string
)

func init() {
	undoCmd.Flags().BoolVar(&undoList, "list", false, "list all backups")
	undoCmd.Flags().BoolVar(&undoClear, "clear", false, "delete all backups")
	undoCmd.Flags().StringVar(&undoDelete, "delete", "", "delete the backup with this id")
	undoCmd.Flags().BoolVar(&undoPick, "pick", false, "choose the backup to restore interactively")
	undoCmd.Flags().BoolVarP(&undoYes, "yes", "y", false, "answer yes to confirmation prompts")
	undoCmd.Flags().BoolVar(&undoKeep, "keep", false, "keep the backup after restoring without asking")
	undoCmd.Flags().StringVar(&undoFormat, "format", formatTable, "list output format: table, json, yaml, toml")
	rootCmd.AddCommand(undoCmd)
}

var undoCmd = &cobra.Command{
	Use:   "undo [backupId]",
	Short: "Restore files from a backup",
	Long: `Restore package.json files saved before a rewrite.

Without arguments the most recent backup is restored. Pass a backup id to
restore a specific one, or --pick to choose interactively. After a
successful restore you are asked whether to delete the backup.`,
	Example: `  # Restore the most recent backup
  pnpm-catalog undo

  # Restore a specific backup without prompts
  pnpm-catalog undo 20260123T100712.000-ab12 --yes

  # List backups as JSON
  pnpm-catalog undo --list --format json

  # Delete one backup, or all of them
  pnpm-catalog undo --delete 20260123T100712.000-ab12
  pnpm-catalog undo --clear`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

// undoAction is what a single undo invocation does.
type undoAction int

const (
	undoRestore undoAction = iota
	undoListBackups
	undoClearBackups
	undoDeleteBackup
)

func (a undoAction) String() string {
	switch a {
	case undoListBackups:
		return "list"
	case undoClearBackups:
		return "clear"
	case undoDeleteBackup:
		return "delete"
	default:
		return "restore"
	}
}

// undoRequest is the resolved form of the undo flags and arguments.
type undoRequest struct {
	Action undoAction
	ID     string
	Pick   bool
	Keep   bool
	Format string
}

// undoFlags carries the raw flag values into resolveUndoRequest.
type undoFlags struct {
	List   bool
	Clear  bool
	Delete string
	Pick   bool
	Keep   bool
	Format string
}

// resolveUndoRequest turns flags into exactly one action, rejecting
// combinations that would be ambiguous.
func resolveUndoRequest(args []string, f undoFlags) (undoRequest, error) {
	req := undoRequest{Action: undoRestore, Pick: f.Pick, Keep: f.Keep, Format: f.Format}
	if len(args) > 0 {
		req.ID = args[0]
	}
	if req.Format == "" {
		req.Format = formatTable
	}
	if err := validFormat(req.Format); err != nil {
		return undoRequest{}, err
	}

	var selected []string
	if f.List {
		req.Action = undoListBackups
		selected = append(selected, "--list")
	}
	if f.Clear {
		req.Action = undoClearBackups
		selected = append(selected, "--clear")
	}
	if f.Delete != "" {
		req.Action = undoDeleteBackup
		req.ID = f.Delete
		selected = append(selected, "--delete")
	}

	switch {
	case len(selected) > 1:
		return undoRequest{}, errors.NewUserError(
			errors.Newf("%s cannot be combined", strings.Join(selected, " and ")),
			"Use one of --list, --clear, or --delete at a time")
	case len(selected) == 1 && len(args) > 0:
		return undoRequest{}, errors.NewUserError(
			errors.Newf("%s does not take a backup id argument", selected[0]),
			"Run 'pnpm-catalog undo --help' for usage")
	case f.Pick && (len(selected) > 0 || req.ID != ""):
		return undoRequest{}, errors.NewUserError(
			errors.New("--pick selects the backup to restore and cannot be combined with an id or another action"),
			"Run 'pnpm-catalog undo --pick' on its own")
	case req.Format != formatTable && req.Action != undoListBackups:
		return undoRequest{}, errors.NewUserError(
			errors.New("--format only applies to --list"),
			"Run 'pnpm-catalog undo --list --format json'")
	}

	if req.Action == undoDeleteBackup && !backup.ValidID(req.ID) {
		return undoRequest{}, errors.NewUserError(
			errors.Newf("invalid backup id %q", req.ID),
			"Run 'pnpm-catalog undo --list' to see available backups")
	}

	return req, nil
}

// undoEnv holds the collaborators an undo run talks to.
type undoEnv struct {
	Manager   *backup.Manager
	Confirmer prompt.Confirmer
	Picker    prompt.Picker
	AssumeYes bool
}

func runUndo(cmd *cobra.Command, args []string) error {
	req, err := resolveUndoRequest(args, undoFlags{
		List:   undoList,
		Clear:  undoClear,
		Delete: undoDelete,
		Pick:   undoPick,
		Keep:   undoKeep,
		Format: undoFormat,
	})
	if err != nil {
		return err
	}

	ws, cfg, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}

	yes := undoYes || cfg.AssumeYes
	confirmer, picker := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout(), yes)

	return runUndoWithWriter(cmd.OutOrStdout(), undoEnv{
		Manager:   newManager(cmd, ws),
		Confirmer: confirmer,
		Picker:    picker,
		AssumeYes: yes,
	}, req)
}

func runUndoWithWriter(w io.Writer, env undoEnv, req undoRequest) error {
	if req.Format == formatTable {
		printHeader(w, "Undo")
	}

	switch req.Action {
	case undoListBackups:
		return listBackups(w, env.Manager, req.Format)
	case undoClearBackups:
		return clearBackups(w, env)
	case undoDeleteBackup:
		return deleteBackup(w, env.Manager, req.ID)
	default:
		return restoreBackup(w, env, req)
	}
}

func listBackups(w io.Writer, mgr *backup.Manager, format string) error {
	infos, err := mgr.List()
	if err != nil {
		return errors.NewSystemError(err, "Check that the backup directory is readable")
	}

	if format != formatTable {
		return encodeBackups(w, format, infos)
	}

	if len(infos) == 0 {
		printNoBackups(w)
		return nil
	}

	fmt.Fprintf(w, "%s found:\n", english.Plural(len(infos), "backup", "backups"))
	if err := printBackupTable(w, infos, false); err != nil {
		return err
	}
	printTips(w,
		"To restore one of these backups, run:",
		cyan("pnpm-catalog undo [backupId]"))
	return nil
}

func clearBackups(w io.Writer, env undoEnv) error {
	ids, err := env.Manager.Store().IDs()
	if err != nil {
		return errors.NewSystemError(err, "Check that the backup directory is readable")
	}
	if len(ids) == 0 {
		printNoBackups(w)
		return nil
	}

	ok, err := env.Confirmer.Confirm(fmt.Sprintf("Are you sure to delete all %s?", english.Plural(len(ids), "backup", "backups")))
	if err != nil {
		return err
	}
	if !ok {
		printCancelled(w)
		return nil
	}

	n, err := env.Manager.Clear()
	if err != nil {
		return errors.NewSystemError(errors.Wrapf(err, "cleared %d backups before failing", n),
			"Check permissions on the backup directory")
	}
	fmt.Fprintf(w, "%s All current backups have been deleted (%s).\n", green("✓"), english.Plural(n, "backup", "backups"))
	return nil
}

func deleteBackup(w io.Writer, mgr *backup.Manager, id string) error {
	ok, err := mgr.Delete(id)
	if err != nil {
		return errors.NewSystemError(err, "Check permissions on the backup directory")
	}
	if ok {
		fmt.Fprintf(w, "BackupID `%s` has been removed.\n", cyan(id))
	} else {
		fmt.Fprintf(w, "BackupID `%s` not found.\n", cyan(id))
	}
	return nil
}

func restoreBackup(w io.Writer, env undoEnv, req undoRequest) error {
	info, err := selectBackup(env, req)
	if err != nil {
		if errors.Is(err, prompt.ErrSelectionCancelled) {
			printCancelled(w)
			return nil
		}
		return err
	}

	if info == nil {
		if req.ID != "" {
			return errors.NewUserError(errors.Wrapf(backup.ErrBackupNotFound, "backup %s", req.ID),
				"Run 'pnpm-catalog undo --list' to see available backups")
		}
		printNoBackups(w)
		return nil
	}

	id := info.Manifest.ID
	fmt.Fprintln(w, "Backup information:")
	if err := printBackupTable(w, []backup.BackupInfo{*info}, true); err != nil {
		return err
	}

	ok, err := env.Confirmer.Confirm("Are you sure to restore the above-mentioned backup files?")
	if err != nil {
		return err
	}
	if !ok {
		printCancelled(w)
		return nil
	}

	result, err := env.Manager.Restore(id)
	if err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			return errors.NewUserError(err, "The backup was removed while restoring")
		}
		return errors.NewSystemError(err, "Recovery failed; the backup was kept")
	}

	if result.Partial() {
		fmt.Fprintf(w, "%s Restored %d of %d files from %s:\n", yellow("!"), result.Restored, result.Total, id)
		for _, f := range result.Failed {
			fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Err)
		}
		return errors.NewSystemError(
			errors.Newf("restored %d of %d files", result.Restored, result.Total),
			"The backup was kept; fix the errors above and run undo again")
	}

	fmt.Fprintf(w, "%s Backup %s restored (%s).\n", green("✓"), cyan(id), english.Plural(result.Restored, "file", "files"))

	if req.Keep || env.AssumeYes {
		return nil
	}

	remove, err := env.Confirmer.Confirm("Delete cached backup files?")
	if err != nil {
		return err
	}
	if !remove {
		return nil
	}
	if _, err := env.Manager.Delete(id); err != nil {
		return errors.NewSystemError(err, "Delete it later with 'pnpm-catalog undo --delete "+id+"'")
	}
	fmt.Fprintln(w, "Done. Cache file has been deleted.")
	return nil
}

// selectBackup finds the backup to restore: an explicit id, an
// interactive pick, or the latest one.
func selectBackup(env undoEnv, req undoRequest) (*backup.BackupInfo, error) {
	switch {
	case req.ID != "":
		info, err := env.Manager.Find(req.ID)
		if err != nil {
			return nil, errors.NewSystemError(err, "Check that the backup directory is readable")
		}
		return info, nil
	case req.Pick:
		return pickBackup(env)
	default:
		info, err := env.Manager.Latest()
		if err != nil {
			return nil, errors.NewSystemError(err, "Check that the backup directory is readable")
		}
		return info, nil
	}
}

func pickBackup(env undoEnv) (*backup.BackupInfo, error) {
	infos, err := env.Manager.List()
	if err != nil {
		return nil, errors.NewSystemError(err, "Check that the backup directory is readable")
	}
	if len(infos) == 0 {
		return nil, nil
	}

	labels := make([]string, len(infos))
	for i, info := range infos {
		m := info.Manifest
		labels[i] = fmt.Sprintf("%s  %s  %s", m.ID, formatBackupTime(m.CreatedAt()), english.Plural(len(m.Files), "file", "files"))
		if m.Description != "" {
			labels[i] += "  " + m.Description
		}
	}

	idx, err := env.Picker.Pick("Select a backup to restore", labels, func(i int) string {
		m := infos[i].Manifest
		return fmt.Sprintf("ID: %s\nCreated: %s\nDescription: %s\n\nFiles:\n  %s",
			m.ID, formatBackupTime(m.CreatedAt()), m.Description, strings.Join(m.Paths(), "\n  "))
	})
	if err != nil {
		return nil, err
	}
	return &infos[idx], nil
}
