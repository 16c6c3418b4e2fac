package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/pnpm-catalog/internal/doctor"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

var (
	doctorJSON bool
	doctorAll  bool
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output the report as JSON")
	doctorCmd.Flags().BoolVar(&doctorAll, "all", false, "show passing checks too")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the workspace and verify stored backups",
	Long: `Run health checks against the workspace and the backup store.

The workspace check parses pnpm-workspace.yaml and every package.json that
apply would rewrite. The backup checks inspect the store directory and hash
every stored file against its manifest. Nothing is modified.

Exit codes:
  0 - all checks passed
  1 - warnings found
  2 - errors found`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(c *cobra.Command, _ []string) error {
	ws, cfg, err := loadWorkspace(c)
	if err != nil {
		return err
	}

	osFs := afero.NewOsFs()
	runner := doctor.NewRunner(
		doctor.NewWorkspaceCheck(osFs, ws.Root, cfg.DefaultCatalog, ws.BackupDir),
		doctor.NewStoreCheck(osFs, ws.BackupDir),
		doctor.NewBackupsCheck(newManager(c, ws)),
	)
	return runDoctorWithWriter(c.OutOrStdout(), runner.Run(), doctorJSON, doctorAll)
}

func runDoctorWithWriter(w io.Writer, report *doctor.Report, asJSON, all bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "encoding JSON")
		}
	} else {
		printDoctorReport(w, report, all)
	}

	if report.HasErrors() {
		return errors.NewSystemError(nil, "doctor found errors")
	}
	if report.HasWarnings() {
		return errors.NewUserError(nil, "doctor found warnings")
	}
	return nil
}

func printDoctorReport(w io.Writer, report *doctor.Report, all bool) {
	printHeader(w, "Doctor")

	for _, result := range report.Results {
		problem := result.Status == doctor.SeverityError || result.Status == doctor.SeverityWarning
		if !all && !problem && result.Status != doctor.SeverityInfo {
			continue
		}

		fmt.Fprintf(w, "%s [%s] %s: %s\n", statusIcon(result.Status), result.Category, result.Name, result.Message)
		for _, d := range result.Details {
			fmt.Fprintf(w, "    %s\n", d)
		}
		if problem && result.FixHint != "" {
			fmt.Fprintf(w, "  %s %s\n", faint("hint:"), result.FixHint)
		}
	}

	fmt.Fprintf(w, "\nSummary: %d passed, %d info, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)
}

func statusIcon(s doctor.Severity) string {
	switch s {
	case doctor.SeverityPass:
		return green("✓")
	case doctor.SeverityInfo:
		return cyan("ℹ")
	case doctor.SeverityWarning:
		return yellow("⚠")
	case doctor.SeverityError:
		return red("✗")
	default:
		return "?"
	}
}
