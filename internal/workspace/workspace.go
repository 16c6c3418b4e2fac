package workspace

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/paths"
	"github.com/thoreinstein/pnpm-catalog/pkg/fileutil"
)

// DefaultCatalog is the name pnpm gives the top-level catalog.
const DefaultCatalog = "default"

var (
	// ErrNoWorkspace indicates the root has no pnpm-workspace.yaml.
	ErrNoWorkspace = errors.New("pnpm-workspace.yaml not found")

	// ErrUnknownCatalog indicates a catalog name absent from the workspace file.
	ErrUnknownCatalog = errors.New("unknown catalog")
)

// File mirrors the parts of pnpm-workspace.yaml this tool reads.
type File struct {
	Packages []string                     `yaml:"packages"`
	Catalog  map[string]string            `yaml:"catalog"`
	Catalogs map[string]map[string]string `yaml:"catalogs"`
}

// Workspace is a loaded pnpm workspace.
type Workspace struct {
	Root   string
	File   File
	fs     afero.Fs
	logger *slog.Logger
}

// Option configures Load.
type Option func(*Workspace)

// WithFs sets the filesystem the workspace is read from.
func WithFs(fsys afero.Fs) Option {
	return func(w *Workspace) {
		if fsys != nil {
			w.fs = fsys
		}
	}
}

// WithLogger sets the logger used while scanning packages.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Load reads pnpm-workspace.yaml from root.
func Load(root string, opts ...Option) (*Workspace, error) {
	w := &Workspace{
		Root:   filepath.Clean(root),
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logging.ComponentKey, "workspace")

	path := filepath.Join(w.Root, paths.WorkspaceFile)
	data, err := fileutil.ReadFileWithLimit(w.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoWorkspace, "in %s", w.Root)
		}
		return nil, errors.Wrapf(err, "reading %s", paths.WorkspaceFile)
	}

	if err := yaml.Unmarshal(data, &w.File); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", paths.WorkspaceFile)
	}
	return w, nil
}

// CatalogNames returns every catalog defined in the workspace, sorted, with
// the default catalog first when present.
func (w *Workspace) CatalogNames() []string {
	var names []string
	if len(w.File.Catalog) > 0 || len(w.File.Catalogs[DefaultCatalog]) > 0 {
		names = append(names, DefaultCatalog)
	}
	named := make([]string, 0, len(w.File.Catalogs))
	for name := range w.File.Catalogs {
		if name != DefaultCatalog {
			named = append(named, name)
		}
	}
	slices.Sort(named)
	return append(names, named...)
}

// Catalog returns the dependency versions of catalog name. The empty name
// and "default" both select the top-level catalog.
func (w *Workspace) Catalog(name string) (map[string]string, error) {
	if name == "" || name == DefaultCatalog {
		if len(w.File.Catalog) > 0 {
			return w.File.Catalog, nil
		}
		if c, ok := w.File.Catalogs[DefaultCatalog]; ok {
			return c, nil
		}
		return nil, errors.Wrapf(ErrUnknownCatalog, "%q", DefaultCatalog)
	}
	c, ok := w.File.Catalogs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCatalog, "%q", name)
	}
	return c, nil
}

// Protocol returns the version specifier that references catalog name.
func Protocol(name string) string {
	if name == "" || name == DefaultCatalog {
		return "catalog:"
	}
	return "catalog:" + name
}

// PackageFiles returns the workspace-relative, slash-separated paths of the
// root package.json and every package.json matched by the packages globs,
// sorted. node_modules, hidden directories, and any directory in skip
// (absolute paths) are never descended into.
func (w *Workspace) PackageFiles(skip ...string) ([]string, error) {
	var include, exclude []string
	for _, p := range w.File.Packages {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			exclude = append(exclude, normalizePattern(neg))
			continue
		}
		include = append(include, normalizePattern(p))
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = true
	}

	var files []string
	if ok, _ := afero.Exists(w.fs, filepath.Join(w.Root, paths.PackageFile)); ok {
		files = append(files, paths.PackageFile)
	}

	err := afero.Walk(w.fs, w.Root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() || path == w.Root {
			return nil
		}
		name := info.Name()
		if name == "node_modules" || strings.HasPrefix(name, ".") || skipped[filepath.Clean(path)] {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}

		manifest := filepath.Join(path, paths.PackageFile)
		if ok, _ := afero.Exists(w.fs, manifest); ok {
			files = append(files, rel+"/"+paths.PackageFile)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning workspace packages")
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}
