package doctor

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/paths"
	"github.com/thoreinstein/pnpm-catalog/internal/workspace"
	"github.com/thoreinstein/pnpm-catalog/pkg/fileutil"
)

// maxStorePerm is the widest permission the backup store should carry.
const maxStorePerm fs.FileMode = 0o700

// WorkspaceCheck validates pnpm-workspace.yaml and the package manifests it
// selects.
type WorkspaceCheck struct {
	root           string
	fs             afero.Fs
	defaultCatalog string
	skip           []string
}

var _ Check = (*WorkspaceCheck)(nil)

// NewWorkspaceCheck creates a workspace check. defaultCatalog is the
// configured default catalog, if any; skip lists directories the package
// scan must not enter.
func NewWorkspaceCheck(fsys afero.Fs, root, defaultCatalog string, skip ...string) *WorkspaceCheck {
	return &WorkspaceCheck{root: root, fs: fsys, defaultCatalog: defaultCatalog, skip: skip}
}

// Name returns the unique identifier for this check.
func (c *WorkspaceCheck) Name() string { return "workspace" }

// Category returns the grouping for this check.
func (c *WorkspaceCheck) Category() string { return "workspace" }

// Run loads the workspace and parses every package.json it would rewrite.
func (c *WorkspaceCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	ws, err := workspace.Load(c.root, workspace.WithFs(c.fs))
	if err != nil {
		result.Status = SeverityError
		result.Message = err.Error()
		if errors.Is(err, workspace.ErrNoWorkspace) {
			result.FixHint = "run from the workspace root or pass --cwd"
		} else {
			result.FixHint = "fix the YAML syntax in " + paths.WorkspaceFile
		}
		return result
	}

	files, err := ws.PackageFiles(c.skip...)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("scanning packages: %v", err)
		return result
	}

	for _, rel := range files {
		data, err := fileutil.ReadFileWithLimit(c.fs, filepath.Join(c.root, filepath.FromSlash(rel)))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Details = append(result.Details, fmt.Sprintf("%s: %v", rel, err))
			}
			continue
		}
		if !json.Valid(data) {
			result.Details = append(result.Details, rel+": invalid JSON")
		}
	}

	names := ws.CatalogNames()
	switch {
	case len(result.Details) > 0:
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s cannot be parsed", english.Plural(len(result.Details), "package manifest", ""))
		result.FixHint = "apply refuses to run until every package.json is valid JSON"
	case len(names) == 0:
		result.Status = SeverityWarning
		result.Message = "no catalogs are defined"
		result.FixHint = "add a catalog or catalogs section to " + paths.WorkspaceFile
	case c.defaultCatalog != "" && !slices.Contains(names, c.defaultCatalog):
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("configured default catalog %q is not defined", c.defaultCatalog)
		result.FixHint = "available catalogs: " + strings.Join(names, ", ")
	default:
		result.Status = SeverityPass
		result.Message = fmt.Sprintf("%s (%s), %s",
			english.Plural(len(names), "catalog", ""), strings.Join(names, ", "),
			english.Plural(len(files), "package manifest", ""))
	}
	return result
}

// StoreCheck validates the backup store directory and its permissions.
type StoreCheck struct {
	fs  afero.Fs
	dir string
}

var _ Check = (*StoreCheck)(nil)

// NewStoreCheck creates a store check for dir.
func NewStoreCheck(fsys afero.Fs, dir string) *StoreCheck {
	return &StoreCheck{fs: fsys, dir: dir}
}

// Name returns the unique identifier for this check.
func (c *StoreCheck) Name() string { return "backup-store" }

// Category returns the grouping for this check.
func (c *StoreCheck) Category() string { return "backups" }

// Run inspects the store directory.
func (c *StoreCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	info, err := c.fs.Stat(c.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.Status = SeverityInfo
		result.Message = "no backup store yet: " + c.dir
		return result
	case err != nil:
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot access %s: %v", c.dir, err)
		return result
	case !info.IsDir():
		result.Status = SeverityError
		result.Message = c.dir + " is not a directory"
		result.FixHint = "remove the file or choose another --backup-dir"
		return result
	}

	if perm := info.Mode().Perm(); perm&^maxStorePerm != 0 {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("%s is accessible to other users (%04o)", c.dir, perm)
		result.FixHint = fmt.Sprintf("chmod %o %s", maxStorePerm, c.dir)
		return result
	}

	result.Status = SeverityPass
	result.Message = c.dir
	return result
}

// BackupsCheck verifies every stored backup against its manifest.
type BackupsCheck struct {
	mgr *backup.Manager
}

var _ Check = (*BackupsCheck)(nil)

// NewBackupsCheck creates an integrity check over mgr's store.
func NewBackupsCheck(mgr *backup.Manager) *BackupsCheck {
	return &BackupsCheck{mgr: mgr}
}

// Name returns the unique identifier for this check.
func (c *BackupsCheck) Name() string { return "backup-integrity" }

// Category returns the grouping for this check.
func (c *BackupsCheck) Category() string { return "backups" }

// Run hashes every payload and looks for unreadable records and
// payload directories without a record.
func (c *BackupsCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	infos, err := c.mgr.List()
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("listing backups: %v", err)
		return result
	}

	corrupted := 0
	for _, info := range infos {
		v, err := c.mgr.Verify(info.Manifest.ID)
		if err != nil {
			result.Details = append(result.Details, fmt.Sprintf("%s: %v", info.Manifest.ID, err))
			corrupted++
			continue
		}
		if !v.OK() {
			corrupted++
			for _, f := range v.Failed {
				result.Details = append(result.Details, fmt.Sprintf("%s: %v", v.ID, f.Err))
			}
		}
	}

	unreadable, err := c.mgr.Unreadable()
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("reading manifests: %v", err)
		return result
	}
	for _, id := range unreadable {
		result.Details = append(result.Details, id+": unreadable manifest")
	}

	orphans, err := c.mgr.Orphans()
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("scanning store: %v", err)
		return result
	}
	for _, id := range orphans {
		result.Details = append(result.Details, id+": payload directory without manifest")
	}

	switch {
	case corrupted > 0:
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s of %d failed verification", english.Plural(corrupted, "backup", ""), len(infos))
		result.FixHint = "restoring a corrupted backup is partial; delete it with pnpm-catalog undo --delete <id>"
	case len(unreadable) > 0 || len(orphans) > 0:
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("%s verified, %d unreadable, %d orphaned",
			english.Plural(len(infos), "backup", ""), len(unreadable), len(orphans))
		result.FixHint = "pnpm-catalog undo --clear removes unreadable manifests; orphaned directories under " +
			c.mgr.Dir() + " can be removed by hand"
	case len(infos) == 0:
		result.Status = SeverityInfo
		result.Message = "no backups"
	default:
		result.Status = SeverityPass
		result.Message = english.Plural(len(infos), "backup", "") + " verified"
	}
	return result
}
