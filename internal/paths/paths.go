package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

// AppName is used for config and cache directory names.
const AppName = "pnpm-catalog"

// Well-known file names inside a pnpm workspace.
const (
	WorkspaceFile = "pnpm-workspace.yaml"
	PackageFile   = "package.json"
)

// DefaultBackupRel is the backup store location relative to the workspace root.
var DefaultBackupRel = filepath.Join("node_modules", ".cache", AppName, "backups")

// Sentinel errors for path resolution.
var (
	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")

	// ErrOutsideRoot indicates a path resolves outside the workspace root.
	ErrOutsideRoot = errors.New("path escapes workspace root")
)

// DefaultDirPerm is the default permission for newly created directories (private).
const DefaultDirPerm = 0o700

// ConfigHome returns the XDG config home directory.
// On Linux: ~/.config
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func ConfigHome() string {
	return xdg.ConfigHome
}

// AppConfigDir returns <ConfigHome>/pnpm-catalog.
func AppConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// ResolveRoot turns the --cwd value into an absolute, cleaned workspace root.
// An empty value means the process working directory.
func ResolveRoot(cwd string) (string, error) {
	if strings.ContainsRune(cwd, '\x00') {
		return "", errors.Wrapf(ErrInvalidPath, "%q", cwd)
	}
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "getting working directory")
		}
		return wd, nil
	}
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", cwd)
	}
	return abs, nil
}

// BackupDir returns the backup store for root. An empty override selects
// DefaultBackupRel; a relative override is resolved against root.
func BackupDir(root, override string) string {
	if override == "" {
		return filepath.Join(root, DefaultBackupRel)
	}
	if filepath.IsAbs(override) {
		return filepath.Clean(override)
	}
	return filepath.Join(root, override)
}

// Rel converts p (absolute or relative to root) into a cleaned,
// slash-separated path relative to root. Paths escaping root are rejected.
func Rel(root, p string) (string, error) {
	if p == "" || strings.ContainsRune(p, '\x00') {
		return "", errors.Wrapf(ErrInvalidPath, "%q", p)
	}

	var rel string
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(root, p)
		if err != nil {
			return "", errors.Wrapf(ErrOutsideRoot, "%s", p)
		}
		rel = r
	} else {
		rel = filepath.Clean(p)
	}

	if rel == "." {
		return "", errors.Wrapf(ErrInvalidPath, "%s is the workspace root", p)
	}
	if !filepath.IsLocal(rel) {
		return "", errors.Wrapf(ErrOutsideRoot, "%s", p)
	}
	return filepath.ToSlash(rel), nil
}

// IsLocalSlash reports whether a slash-separated relative path stays inside
// its root once converted to the host separator.
func IsLocalSlash(rel string) bool {
	return rel != "" && !strings.Contains(rel, "\\") && filepath.IsLocal(filepath.FromSlash(rel))
}
