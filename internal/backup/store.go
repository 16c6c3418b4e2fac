package backup

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/paths"
	"github.com/thoreinstein/pnpm-catalog/pkg/fileutil"
)

const recordExt = ".json"

// idPattern matches ids this package generates and rejects anything that
// could be interpreted as a path.
var idPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._-]*$`)

// manifestValidate checks manifests read from disk.
var manifestValidate *validator.Validate

func init() {
	manifestValidate = validator.New()
	_ = manifestValidate.RegisterValidation("backupid", func(fl validator.FieldLevel) bool {
		return ValidID(fl.Field().String())
	})
	_ = manifestValidate.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		return paths.IsLocalSlash(fl.Field().String())
	})
}

// ValidID reports whether id is syntactically a backup id.
func ValidID(id string) bool {
	return idPattern.MatchString(id) && !strings.Contains(id, "..")
}

// ManifestStore reads and writes manifest records. Each backup has exactly
// one record, <dir>/<id>.json.
type ManifestStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// NewManifestStore creates a store rooted at dir.
func NewManifestStore(fsys afero.Fs, dir string, logger *slog.Logger) *ManifestStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManifestStore{fs: fsys, dir: dir, logger: logger}
}

func (s *ManifestStore) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// Save validates and durably writes manifest. The record is written to a
// temp file, fsynced, and renamed into place.
func (s *ManifestStore) Save(manifest *BackupManifest) error {
	if manifest == nil {
		return errors.New("manifest is required")
	}
	if err := manifestValidate.Struct(manifest); err != nil {
		return errors.Wrapf(errors.Mark(err, ErrManifestInvalid), "validating manifest %s", manifest.ID)
	}
	if err := s.fs.MkdirAll(s.dir, paths.DefaultDirPerm); err != nil {
		return errors.Wrap(err, "creating backup store")
	}
	if err := fileutil.AtomicWriteJSON(s.fs, s.recordPath(manifest.ID), manifest, 0o600); err != nil {
		return errors.Wrapf(err, "writing manifest %s", manifest.ID)
	}
	return nil
}

// Load reads and validates the record for id.
// Returns ErrBackupNotFound when no record exists and ErrManifestInvalid when
// it cannot be parsed or fails validation.
func (s *ManifestStore) Load(id string) (*BackupManifest, error) {
	if !ValidID(id) {
		return nil, errors.Wrapf(ErrBackupNotFound, "backup %q", id)
	}

	data, err := fileutil.ReadFileWithLimit(s.fs, s.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrBackupNotFound, "backup %s", id)
		}
		if errors.Is(err, fileutil.ErrFileTooLarge) {
			return nil, errors.Wrapf(ErrManifestInvalid, "backup %s: %v", id, err)
		}
		return nil, errors.Wrapf(err, "reading manifest %s", id)
	}

	var manifest BackupManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrapf(ErrManifestInvalid, "backup %s: %v", id, err)
	}
	if err := manifestValidate.Struct(&manifest); err != nil {
		return nil, errors.Wrapf(ErrManifestInvalid, "backup %s: %v", id, err)
	}
	if manifest.ID != id {
		return nil, errors.Wrapf(ErrManifestInvalid, "backup %s: record holds id %q", id, manifest.ID)
	}

	for i := range manifest.Files {
		manifest.Files[i].SnapshotRef = manifest.Files[i].RelativePath
	}
	return &manifest, nil
}

// IDs returns the ids of every record present, valid or not, in directory order.
// A missing store yields no ids.
func (s *ManifestStore) IDs() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading backup store")
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), recordExt)
		if !ValidID(id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadAll reads every record in the store. Records that fail to parse or
// validate are logged and skipped so one corrupt backup never hides the rest.
func (s *ManifestStore) LoadAll() ([]BackupManifest, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}

	manifests := make([]BackupManifest, 0, len(ids))
	for _, id := range ids {
		m, err := s.Load(id)
		if err != nil {
			if errors.Is(err, ErrManifestInvalid) {
				s.logger.Warn("skipping unreadable backup manifest", "id", id, "error", err)
				continue
			}
			if errors.Is(err, ErrBackupNotFound) {
				// Removed between ReadDir and Load
				continue
			}
			return nil, err
		}
		manifests = append(manifests, *m)
	}
	return manifests, nil
}

// Remove deletes the record for id. It reports false when no record existed.
func (s *ManifestStore) Remove(id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	if err := s.fs.Remove(s.recordPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "removing manifest %s", id)
	}
	return true, nil
}
