package backup

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/paths"
)

// Manager handles backup creation, restoration, and management for one
// workspace. Every operation resolves file paths against the workspace root
// the Manager was created with.
type Manager struct {
	root        string
	dir         string
	fs          afero.Fs
	now         func() time.Time
	logger      *slog.Logger
	toolVersion string
	store       *ManifestStore
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackupDir sets the backup store directory.
func WithBackupDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.dir = dir
		}
	}
}

// WithFs sets the filesystem used for both workspace files and the store.
func WithFs(fsys afero.Fs) Option {
	return func(m *Manager) {
		if fsys != nil {
			m.fs = fsys
		}
	}
}

// WithClock overrides the time source used for backup ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for skipped files and per-file failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithToolVersion sets the tool version recorded in new manifests.
func WithToolVersion(v string) Option {
	return func(m *Manager) {
		m.toolVersion = v
	}
}

// NewManager creates a backup Manager for the workspace rooted at root.
// The store defaults to paths.DefaultBackupRel below root.
func NewManager(root string, opts ...Option) *Manager {
	m := &Manager{
		root:   filepath.Clean(root),
		fs:     afero.NewOsFs(),
		now:    time.Now,
		logger: slog.Default(),
	}
	m.dir = paths.BackupDir(m.root, "")
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logging.ComponentKey, "backup")
	m.store = NewManifestStore(m.fs, m.dir, m.logger)
	return m
}

// Root returns the workspace root.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the backup store directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Store returns the manifest store backing the Manager.
func (m *Manager) Store() *ManifestStore {
	return m.store
}

// dataDir returns the payload directory of a backup.
func (m *Manager) dataDir(id string) string {
	return filepath.Join(m.dir, id)
}

// payloadPath returns where the content of entry lives inside its backup.
func (m *Manager) payloadPath(id string, entry FileEntry) string {
	ref := entry.SnapshotRef
	if ref == "" {
		ref = entry.RelativePath
	}
	return filepath.Join(m.dataDir(id), filepath.FromSlash(ref))
}

// livePath returns the workspace location of a relative path.
func (m *Manager) livePath(rel string) string {
	return filepath.Join(m.root, filepath.FromSlash(rel))
}
