package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
	"github.com/thoreinstein/pnpm-catalog/internal/rewrite"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTOML  = "toml"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

var tipsStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("12")).
	Padding(1)

// backupRecord is the machine-readable form of a backup.
type backupRecord struct {
	ID          string    `json:"id" yaml:"id" toml:"id"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at" toml:"created_at"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Files       []string  `json:"files" yaml:"files" toml:"files"`
	Size        int64     `json:"size" yaml:"size" toml:"size"`
	ToolVersion string    `json:"tool_version,omitempty" yaml:"tool_version,omitempty" toml:"tool_version,omitempty"`
}

// backupList wraps records so every format has a top-level table.
type backupList struct {
	Backups []backupRecord `json:"backups" yaml:"backups" toml:"backups"`
}

func validFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML, formatTOML:
		return nil
	}
	return errors.NewUserError(errors.Newf("unknown format %q", format),
		"Use --format table, json, yaml, or toml")
}

func toRecords(infos []backup.BackupInfo) backupList {
	out := backupList{Backups: make([]backupRecord, 0, len(infos))}
	for _, info := range infos {
		m := info.Manifest
		out.Backups = append(out.Backups, backupRecord{
			ID:          m.ID,
			CreatedAt:   m.CreatedAt().UTC(),
			Description: m.Description,
			Files:       m.Paths(),
			Size:        info.Size,
			ToolVersion: m.ToolVersion,
		})
	}
	return out
}

// encodeBackups writes infos in a machine-readable format.
func encodeBackups(w io.Writer, format string, infos []backup.BackupInfo) error {
	list := toRecords(infos)

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return enc.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(list)
	}
	return validFormat(format)
}

// printBackupTable renders infos as a table. With detailed set the files
// column lists every path instead of a count.
func printBackupTable(w io.Writer, infos []backup.BackupInfo, detailed bool) error {
	table := tablewriter.NewWriter(w)
	table.Header("Backup ID", "Time", "Files", "Size", "Description")

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		m := info.Manifest
		files := strconv.Itoa(len(m.Files))
		if detailed {
			files = strings.Join(m.Paths(), "\n")
		}
		rows = append(rows, []string{
			m.ID,
			formatBackupTime(m.CreatedAt()),
			files,
			humanize.IBytes(uint64(info.Size)),
			m.Description,
		})
	}

	if err := table.Bulk(rows); err != nil {
		return errors.Wrap(err, "building backup table")
	}
	return errors.Wrap(table.Render(), "rendering backup table")
}

// formatBackupTime shows the local time with a relative hint.
func formatBackupTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05") + " (" + humanize.Time(t) + ")"
}

// printChanges renders the dependency changes of a rewrite plan.
func printChanges(w io.Writer, plan *rewrite.Plan) error {
	table := tablewriter.NewWriter(w)
	table.Header("File", "Section", "Dependency", "From", "To")

	var rows [][]string
	for _, f := range plan.Files {
		for _, c := range f.Changes {
			rows = append(rows, []string{f.Path, c.Section, c.Name, c.From, c.To})
		}
	}

	if err := table.Bulk(rows); err != nil {
		return errors.Wrap(err, "building change table")
	}
	return errors.Wrap(table.Render(), "rendering change table")
}

// printTips renders a boxed hint.
func printTips(w io.Writer, lines ...string) {
	fmt.Fprintln(w, tipsStyle.Render("Tips\n\n"+strings.Join(lines, "\n")))
}

// printNoBackups reports an empty store.
func printNoBackups(w io.Writer) {
	fmt.Fprintln(w, yellow("No backups were found."))
}
