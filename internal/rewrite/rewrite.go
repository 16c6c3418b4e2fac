package rewrite

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/workspace"
	"github.com/thoreinstein/pnpm-catalog/pkg/fileutil"
)

// Sections lists the package.json sections whose entries may be moved to a
// catalog, in the order they are scanned.
var Sections = []string{"dependencies", "devDependencies", "peerDependencies", "optionalDependencies"}

// ErrStalePlan indicates a planned file changed on disk before Apply.
var ErrStalePlan = errors.New("file changed since the rewrite was planned")

// Backupper snapshots files before they are rewritten.
type Backupper interface {
	Create(files []string, description string) (*backup.BackupManifest, error)
}

// Change is one dependency version moved to a catalog.
type Change struct {
	Section string
	Name    string
	From    string
	To      string
}

// FilePlan is the rewrite of a single package.json.
type FilePlan struct {
	Path    string
	Changes []Change

	original []byte
	content  []byte
	mode     fs.FileMode
}

// Plan is a computed, not yet applied, rewrite.
type Plan struct {
	Catalog  string
	Protocol string
	Scanned  int
	Files    []FilePlan
}

// Empty reports whether the plan would modify nothing.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Files) == 0
}

// Paths returns the workspace-relative paths the plan writes.
func (p *Plan) Paths() []string {
	out := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, f.Path)
	}
	return out
}

// ChangeCount returns the number of dependency entries the plan rewrites.
func (p *Plan) ChangeCount() int {
	n := 0
	for _, f := range p.Files {
		n += len(f.Changes)
	}
	return n
}

// Request describes which dependencies to move to which catalog.
type Request struct {
	// Catalog is the catalog name; empty selects the default catalog.
	Catalog string
	// Members are the catalog's dependency names.
	Members map[string]string
	// Only restricts the rewrite to these names when non-empty.
	Only []string
	// Files are workspace-relative package.json paths.
	Files []string
}

// Result reports an applied plan.
type Result struct {
	Backup  *backup.BackupManifest
	Written []string
}

// Rewriter plans and applies catalog rewrites for one workspace.
type Rewriter struct {
	root    string
	fs      afero.Fs
	backups Backupper
	logger  *slog.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithFs sets the filesystem package.json files are read from and written to.
func WithFs(fsys afero.Fs) Option {
	return func(r *Rewriter) {
		if fsys != nil {
			r.fs = fsys
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Rewriter for the workspace at root. Every Apply snapshots
// the files it changes through backups first.
func New(root string, backups Backupper, opts ...Option) *Rewriter {
	r := &Rewriter{
		root:    filepath.Clean(root),
		fs:      afero.NewOsFs(),
		backups: backups,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.ComponentKey, "rewrite")
	return r
}

// Plan computes the rewrite for req without touching any file. Missing
// files are skipped; a file that is not valid JSON fails the plan.
func (r *Rewriter) Plan(req Request) (*Plan, error) {
	protocol := workspace.Protocol(req.Catalog)
	plan := &Plan{Catalog: req.Catalog, Protocol: protocol}

	for _, rel := range req.Files {
		path := filepath.Join(r.root, filepath.FromSlash(rel))

		info, err := r.fs.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Debug("skipping missing package file", "path", rel)
				continue
			}
			return nil, errors.Wrapf(err, "reading %s", rel)
		}

		data, err := fileutil.ReadFileWithLimit(r.fs, path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", rel)
		}
		plan.Scanned++

		content, changes, err := rewriteManifest(data, req.Members, req.Only, protocol)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", rel)
		}
		if len(changes) == 0 {
			continue
		}

		plan.Files = append(plan.Files, FilePlan{
			Path:     rel,
			Changes:  changes,
			original: data,
			content:  content,
			mode:     info.Mode().Perm(),
		})
	}

	r.logger.Debug("rewrite planned", "catalog", protocol, "scanned", plan.Scanned,
		"files", len(plan.Files), "changes", plan.ChangeCount())
	return plan, nil
}

// Apply backs up every file the plan changes and then writes them. If the
// backup fails, or any planned file changed on disk since Plan, nothing is
// written. An empty plan creates no backup.
func (r *Rewriter) Apply(plan *Plan, description string) (*Result, error) {
	if plan.Empty() {
		return &Result{}, nil
	}

	for _, f := range plan.Files {
		current, err := fileutil.ReadFileWithLimit(r.fs, r.path(f.Path))
		if err != nil {
			return nil, errors.Wrapf(err, "re-reading %s", f.Path)
		}
		if !bytes.Equal(current, f.original) {
			return nil, errors.Wrapf(ErrStalePlan, "%s", f.Path)
		}
	}

	if description == "" {
		description = "before moving dependencies to " + plan.Protocol
	}
	manifest, err := r.backups.Create(plan.Paths(), description)
	if err != nil {
		return nil, errors.Wrap(err, "backing up files before rewrite")
	}

	result := &Result{Backup: manifest}
	for _, f := range plan.Files {
		mode := f.mode
		if mode == 0 {
			mode = 0o644
		}
		if err := fileutil.AtomicWriteFile(r.fs, r.path(f.Path), f.content, mode); err != nil {
			return result, errors.Wrapf(err, "writing %s (backup %s holds the originals)", f.Path, manifest.ID)
		}
		result.Written = append(result.Written, f.Path)
		r.logger.Debug("rewrote package file", "path", f.Path, "changes", len(f.Changes))
	}

	r.logger.Info("rewrite applied", "backup", manifest.ID, "files", len(result.Written))
	return result, nil
}

func (r *Rewriter) path(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

// rewriteManifest points every catalog member in the dependency sections of
// a package.json at protocol. It returns nil content when nothing changed.
func rewriteManifest(data []byte, members map[string]string, only []string, protocol string) ([]byte, []Change, error) {
	top, err := parseObject(data)
	if err != nil {
		return nil, nil, err
	}

	var changes []Change
	for i, m := range top {
		if !slices.Contains(Sections, m.key) {
			continue
		}
		deps, err := parseObject(m.value)
		if err != nil {
			// null or a non-object section is left as written
			continue
		}

		changed := false
		for j, d := range deps {
			var version string
			if err := json.Unmarshal(d.value, &version); err != nil {
				continue
			}
			if _, ok := members[d.key]; !ok {
				continue
			}
			if len(only) > 0 && !slices.Contains(only, d.key) {
				continue
			}
			if version == protocol || strings.HasPrefix(version, "catalog:") || strings.HasPrefix(version, "workspace:") {
				continue
			}

			encoded, err := marshalString(protocol)
			if err != nil {
				return nil, nil, err
			}
			deps[j].value = encoded
			changed = true
			changes = append(changes, Change{Section: m.key, Name: d.key, From: version, To: protocol})
		}

		if changed {
			section, err := deps.marshal()
			if err != nil {
				return nil, nil, err
			}
			top[i].value = section
		}
	}

	if len(changes) == 0 {
		return nil, nil, nil
	}

	compact, err := top.marshal()
	if err != nil {
		return nil, nil, err
	}
	content, err := format(compact)
	if err != nil {
		return nil, nil, err
	}
	return content, changes, nil
}
