package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/cli/prompt"
	"github.com/thoreinstein/pnpm-catalog/internal/config"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/rewrite"
	"github.com/thoreinstein/pnpm-catalog/internal/workspace"
)

var (
	applyCatalog     string
	applyDeps        []string
	applyDryRun      bool
	applyYes         bool
	applyDescription string
)

func init() {
	applyCmd.Flags().StringVar(&applyCatalog, "catalog", "",
		"catalog to move dependencies to (default: config default_catalog, then the default catalog)")
	applyCmd.Flags().StringSliceVar(&applyDeps, "dep", nil,
		"only rewrite these dependencies (repeatable)")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false,
		"show the changes without writing or backing up")
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false,
		"apply without asking for confirmation")
	applyCmd.Flags().StringVar(&applyDescription, "description", "",
		"description stored with the backup")
	rootCmd.AddCommand(applyCmd)
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Point workspace dependencies at a catalog",
	Long: `Rewrite every package.json in the workspace so dependencies that appear
in a catalog of pnpm-workspace.yaml use the catalog: protocol.

Only files that change are written, and they are backed up first. Undo the
rewrite with "pnpm-catalog undo".`,
	Example: `  # Use the default catalog
  pnpm-catalog apply

  # Preview moving react and react-dom onto the react18 catalog
  pnpm-catalog apply --catalog react18 --dep react --dep react-dom --dry-run`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

// applyOptions is the resolved form of the apply flags.
type applyOptions struct {
	Catalog     string
	Deps        []string
	DryRun      bool
	Description string
}

// applyEnv holds the collaborators an apply run talks to.
type applyEnv struct {
	Workspace *workspace.Workspace
	Rewriter  *rewrite.Rewriter
	Confirmer prompt.Confirmer
	Picker    prompt.Picker
	SkipDirs  []string
}

func runApply(cmd *cobra.Command, _ []string) error {
	ws, cfg, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}

	logger := logging.FromContext(cmd.Context())
	pnpmWs, err := workspace.Load(ws.Root, workspace.WithLogger(logger))
	if err != nil {
		if errors.Is(err, workspace.ErrNoWorkspace) {
			return errors.NewUserError(err, "Run inside a pnpm workspace or pass --cwd")
		}
		return errors.NewUserError(err, "Fix pnpm-workspace.yaml and try again")
	}

	opts := applyOptions{
		Catalog:     applyCatalog,
		Deps:        applyDeps,
		DryRun:      applyDryRun,
		Description: applyDescription,
	}
	if opts.Catalog == "" {
		opts.Catalog = cfg.DefaultCatalog
	}

	mgr := newManager(cmd, ws)
	confirmer, picker := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout(), applyYes || cfg.AssumeYes)

	return runApplyWithWriter(cmd.OutOrStdout(), applyEnv{
		Workspace: pnpmWs,
		Rewriter:  rewrite.New(ws.Root, mgr, rewrite.WithLogger(logger)),
		Confirmer: confirmer,
		Picker:    picker,
		SkipDirs:  []string{ws.BackupDir},
	}, opts)
}

func runApplyWithWriter(w io.Writer, env applyEnv, opts applyOptions) error {
	printHeader(w, "Apply")

	name, err := chooseCatalog(env, opts.Catalog)
	if err != nil {
		if errors.Is(err, prompt.ErrSelectionCancelled) {
			printCancelled(w)
			return nil
		}
		return err
	}

	members, err := env.Workspace.Catalog(name)
	if err != nil {
		return errors.NewUserError(err, "Available catalogs: "+availableCatalogs(env.Workspace))
	}

	for _, dep := range opts.Deps {
		if _, ok := members[dep]; !ok {
			return errors.NewUserError(
				errors.Newf("%s is not in catalog %s", dep, workspace.Protocol(name)),
				"Add it to pnpm-workspace.yaml or drop --dep "+dep)
		}
	}

	files, err := env.Workspace.PackageFiles(env.SkipDirs...)
	if err != nil {
		return errors.NewSystemError(err, "Check that the workspace is readable")
	}

	plan, err := env.Rewriter.Plan(rewrite.Request{
		Catalog: name,
		Members: members,
		Only:    opts.Deps,
		Files:   files,
	})
	if err != nil {
		return errors.NewUserError(err, "Fix the package.json above and try again")
	}

	if plan.Empty() {
		fmt.Fprintf(w, "Nothing to rewrite: no dependency in %s needs %s.\n",
			english.Plural(plan.Scanned, "package.json", "package.json files"), plan.Protocol)
		return nil
	}

	if err := printChanges(w, plan); err != nil {
		return err
	}
	summary := fmt.Sprintf("%s in %s", english.Plural(plan.ChangeCount(), "dependency", "dependencies"),
		english.Plural(len(plan.Files), "file", "files"))

	if opts.DryRun {
		fmt.Fprintf(w, "Dry run: would rewrite %s. Nothing was written.\n", summary)
		return nil
	}

	ok, err := env.Confirmer.Confirm("Rewrite " + summary + "?")
	if err != nil {
		return err
	}
	if !ok {
		printCancelled(w)
		return nil
	}

	result, err := env.Rewriter.Apply(plan, opts.Description)
	if err != nil {
		if result != nil && result.Backup != nil {
			return errors.NewSystemError(err, "Run 'pnpm-catalog undo "+result.Backup.ID+"' to restore the original files")
		}
		if errors.Is(err, rewrite.ErrStalePlan) {
			return errors.NewUserError(err, "Run apply again")
		}
		if errors.Is(err, backup.ErrNothingToBackUp) {
			return errors.NewSystemError(err, "The files disappeared before they could be backed up")
		}
		return errors.NewSystemError(err, "No file was modified")
	}

	fmt.Fprintf(w, "%s Rewrote %s.\n", green("✓"), summary)
	fmt.Fprintf(w, "Backup %s saved.\n", cyan(result.Backup.ID))
	printTips(w,
		"Run \"pnpm install\" to update the lockfile.",
		"To revert this rewrite, run:",
		cyan("pnpm-catalog undo "+result.Backup.ID))
	return nil
}

// chooseCatalog returns name when set. Otherwise it selects the default
// catalog, the only named catalog, or asks the user to pick one.
func chooseCatalog(env applyEnv, name string) (string, error) {
	if name != "" {
		if err := config.ValidateCatalogName(name); err != nil {
			return "", errors.NewUserError(errors.Wrapf(err, "%q", name), "Catalog names cannot contain spaces, colons, or slashes")
		}
		return name, nil
	}

	names := env.Workspace.CatalogNames()
	switch {
	case len(names) == 0:
		return "", errors.NewUserError(errors.New("pnpm-workspace.yaml defines no catalog"),
			"Add a catalog: or catalogs: section to pnpm-workspace.yaml")
	case slices.Contains(names, workspace.DefaultCatalog) || len(names) == 1:
		return names[0], nil
	}

	idx, err := env.Picker.Pick("Select a catalog", names, func(i int) string {
		members, _ := env.Workspace.Catalog(names[i])
		lines := make([]string, 0, len(members))
		for dep, version := range members {
			lines = append(lines, dep+": "+version)
		}
		slices.Sort(lines)
		return strings.Join(lines, "\n")
	})
	if err != nil {
		return "", err
	}
	return names[idx], nil
}

func availableCatalogs(ws *workspace.Workspace) string {
	names := ws.CatalogNames()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
