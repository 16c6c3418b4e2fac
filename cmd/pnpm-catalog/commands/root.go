// Package commands implements the CLI commands for pnpm-catalog.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thoreinstein/pnpm-catalog/cmd"
	"github.com/thoreinstein/pnpm-catalog/internal/config"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/paths"
)

// debugEnv enables debug (1, true) or trace (2) logging when no -v is given.
const debugEnv = "PNPM_CATALOG_DEBUG"

// cwdFlag holds the value of the --cwd flag.
var cwdFlag string

// backupDirFlag holds the value of the --backup-dir flag.
var backupDirFlag string

// configFlag holds the value of the --config flag.
var configFlag string

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cwdFlag, "cwd", "",
		"workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&backupDirFlag, "backup-dir", "",
		"backup store directory (default: node_modules/.cache/pnpm-catalog/backups)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"config file (default: config.yaml in the workspace root or user config dir)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("pnpm-catalog version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

var rootCmd = &cobra.Command{
	Use:   "pnpm-catalog",
	Short: "Move pnpm workspace dependencies onto catalogs, with undo",
	Long: `pnpm-catalog rewrites the package.json files of a pnpm workspace so that
dependencies listed in a catalog of pnpm-workspace.yaml reference it with
the catalog: protocol.

Every rewrite first snapshots the files it is about to change. Use
"pnpm-catalog undo" to list, restore, or delete those snapshots.`,
	Example: `  # Move every default-catalog dependency to catalog:
  pnpm-catalog apply

  # Preview a named catalog without writing
  pnpm-catalog apply --catalog react18 --dry-run

  # Restore the most recent backup
  pnpm-catalog undo

  See Also: pnpm-catalog undo --list`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(nil, "cannot use --quiet and --verbose together")
	}

	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		v := verbosity

		// CLI flags take precedence, but if not set, check env var
		if v == 0 {
			if val, ok := os.LookupEnv(debugEnv); ok {
				switch val {
				case "1", "true":
					v = 2
				case "2":
					v = 3
				}
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var primaryHandler slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case logging.FormatText, "":
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	default:
		return errors.NewUserError(errors.Newf("unknown log format %q", logFormat), "Use --log-format text or --log-format json")
	}

	var fileHandler slog.Handler
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		// File output uses JSON format
		fileHandler = slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: level,
		})
	}

	logger := slog.New(logging.NewTee(primaryHandler, fileHandler))
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

// loadWorkspace resolves the workspace root from --cwd and merges config
// from file, environment, and the --backup-dir flag.
func loadWorkspace(cmd *cobra.Command) (config.Workspace, *config.Config, error) {
	root, err := paths.ResolveRoot(cwdFlag)
	if err != nil {
		return config.Workspace{}, nil, errors.NewUserError(err, "Check the --cwd path")
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return config.Workspace{}, nil, errors.NewUserError(
			errors.Newf("workspace root %s is not a directory", root), "Check the --cwd path")
	}

	v := viper.New()
	config.Init(v, root)
	if f := cmd.Flag("backup-dir"); f != nil {
		if err := v.BindPFlag(config.KeyBackupDir, f); err != nil {
			return config.Workspace{}, nil, errors.Wrap(err, "binding --backup-dir")
		}
	}

	cfg, err := config.Load(v, configFlag)
	if err != nil {
		return config.Workspace{}, nil, err
	}
	if used := config.ConfigFileUsed(v); used != "" {
		logging.FromContext(cmd.Context()).Debug("loaded config", "path", used)
	}

	return config.Resolve(root, cfg), cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "executing root command")
}
