package backup

import (
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
)

// ManifestVersion is the manifest format version for forward compatibility.
const ManifestVersion = 1

// Sentinel errors for backup operations.
var (
	// ErrNothingToBackUp indicates none of the requested files could be captured.
	ErrNothingToBackUp = errors.New("no files to back up")

	// ErrBackupNotFound indicates no manifest exists for the requested id.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrManifestInvalid indicates a manifest record failed to parse or validate.
	ErrManifestInvalid = errors.New("invalid backup manifest")

	// ErrBackupCorrupted indicates a snapshot payload is missing or its
	// SHA256 hash doesn't match the manifest.
	ErrBackupCorrupted = errors.New("backup corrupted")
)

// BackupManifest contains metadata about a backup.
// It is stored as <id>.json in the backup store, next to the <id>/ payload tree.
type BackupManifest struct {
	// Version is the manifest format version.
	Version int `json:"version" validate:"gte=1"`

	// ID is the backup identifier (format: 20260123T100712.345-9f3c).
	ID string `json:"id" validate:"required,backupid"`

	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp" validate:"gt=0"`

	// Description is an optional free-text label.
	Description string `json:"description,omitempty"`

	// ToolVersion is the version of pnpm-catalog that created this backup.
	ToolVersion string `json:"tool_version,omitempty"`

	// Files lists the captured files in the order they were requested.
	Files []FileEntry `json:"files" validate:"min=1,dive"`
}

// CreatedAt returns Timestamp as a time.Time.
func (m *BackupManifest) CreatedAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Paths returns the relative paths of all entries.
func (m *BackupManifest) Paths() []string {
	out := make([]string, len(m.Files))
	for i, f := range m.Files {
		out[i] = f.RelativePath
	}
	return out
}

// FileEntry contains metadata for a single backed up file.
type FileEntry struct {
	// RelativePath is the slash-separated path of the original file,
	// relative to the workspace root.
	RelativePath string `json:"relative_path" validate:"required,relpath"`

	// SnapshotRef locates the copied content inside the backup's storage
	// directory. The storage mirrors the workspace tree, so it is derived
	// from RelativePath when a manifest is loaded.
	SnapshotRef string `json:"-"`

	// SHA256 is the hex-encoded SHA256 hash of the captured content.
	SHA256 string `json:"sha256" validate:"omitempty,len=64,hexadecimal"`

	// Mode is the file's permission bits.
	Mode fs.FileMode `json:"mode"`

	// Size is the captured length in bytes.
	Size int64 `json:"size" validate:"gte=0"`
}

// BackupInfo is the handle returned by listing and lookup.
type BackupInfo struct {
	Manifest BackupManifest

	// Size is the total payload size of the backup in bytes.
	Size int64
}

// RestoreResult reports the outcome of restoring one backup.
//
// A backup that does not exist is reported by Restore as ErrBackupNotFound,
// never as a result, so "not found", "zero restored" and "N restored" stay
// distinguishable.
type RestoreResult struct {
	ID       string
	Total    int
	Restored int
	Failed   []FileFailure
}

// Partial reports whether fewer files were restored than the backup holds.
func (r *RestoreResult) Partial() bool {
	return r.Restored < r.Total
}

// FileFailure records a single file that could not be restored.
type FileFailure struct {
	Path string
	Err  error
}
