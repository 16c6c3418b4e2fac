package backup

import (
	"cmp"
	"io/fs"
	"slices"

	"github.com/cockroachdb/errors"
)

// List returns every restorable backup, most recent first. Ties on the
// timestamp are broken by id, descending. An empty or missing store yields
// an empty slice.
func (m *Manager) List() ([]BackupInfo, error) {
	manifests, err := m.store.LoadAll()
	if err != nil {
		return nil, err
	}

	infos := make([]BackupInfo, 0, len(manifests))
	for _, manifest := range manifests {
		if !m.hasPayload(manifest.ID) {
			m.logger.Warn("skipping backup without payload directory", "id", manifest.ID)
			continue
		}
		infos = append(infos, newInfo(manifest))
	}

	SortNewestFirst(infos)
	return infos, nil
}

// Latest returns the most recent backup, or nil when the store is empty.
func (m *Manager) Latest() (*BackupInfo, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, nil
	}
	return &infos[0], nil
}

// Find returns the backup with the given id, or nil when it does not exist.
// A corrupt record is reported as absent.
func (m *Manager) Find(id string) (*BackupInfo, error) {
	manifest, err := m.store.Load(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrBackupNotFound):
			return nil, nil
		case errors.Is(err, ErrManifestInvalid):
			m.logger.Warn("backup manifest is unreadable", "id", id, "error", err)
			return nil, nil
		default:
			return nil, err
		}
	}
	if !m.hasPayload(id) {
		return nil, nil
	}
	info := newInfo(*manifest)
	return &info, nil
}

// SortNewestFirst orders infos by timestamp descending, then id descending.
func SortNewestFirst(infos []BackupInfo) {
	slices.SortFunc(infos, func(a, b BackupInfo) int {
		if c := cmp.Compare(b.Manifest.Timestamp, a.Manifest.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.Manifest.ID, a.Manifest.ID)
	})
}

func (m *Manager) hasPayload(id string) bool {
	info, err := m.fs.Stat(m.dataDir(id))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("cannot stat backup directory", "id", id, "error", err)
		}
		return false
	}
	return info.IsDir()
}

func newInfo(manifest BackupManifest) BackupInfo {
	var size int64
	for _, f := range manifest.Files {
		size += f.Size
	}
	return BackupInfo{Manifest: manifest, Size: size}
}
