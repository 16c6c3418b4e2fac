package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/paths"
	"github.com/thoreinstein/pnpm-catalog/pkg/fileutil"
)

// maxIDAttempts bounds retries when a generated id is already taken.
const maxIDAttempts = 8

// Create snapshots files (absolute, or relative to the workspace root) into
// a new backup and returns its manifest.
//
// Files that do not exist, cannot be read, are not regular files, or lie
// outside the workspace root are skipped. When nothing could be captured no
// backup is persisted and ErrNothingToBackUp is returned. The manifest record
// is written only after every payload copy succeeded, so an interrupted
// Create never shows up in listings.
func (m *Manager) Create(files []string, description string) (*BackupManifest, error) {
	if len(files) == 0 {
		return nil, ErrNothingToBackUp
	}

	now := m.now()
	id, dataDir, err := m.reserve(now)
	if err != nil {
		return nil, err
	}

	entries, err := m.capture(dataDir, files)
	if err != nil {
		m.discard(dataDir)
		return nil, err
	}

	if len(entries) == 0 {
		m.discard(dataDir)
		return nil, ErrNothingToBackUp
	}

	manifest := &BackupManifest{
		Version:     ManifestVersion,
		ID:          id,
		Timestamp:   now.UnixMilli(),
		Description: description,
		ToolVersion: m.toolVersion,
		Files:       entries,
	}

	if err := m.store.Save(manifest); err != nil {
		m.discard(dataDir)
		return nil, err
	}

	m.logger.Info("backup created", "id", id, "files", len(entries))
	return manifest, nil
}

// capture copies each source into dataDir. Source problems skip the file;
// failures writing into the store abort the backup.
func (m *Manager) capture(dataDir string, files []string) ([]FileEntry, error) {
	seen := make(map[string]bool, len(files))
	entries := make([]FileEntry, 0, len(files))

	for _, p := range files {
		rel, err := paths.Rel(m.root, p)
		if err != nil {
			m.logger.Warn("skipping path outside workspace", "path", p, "error", err)
			continue
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true

		src := m.livePath(rel)
		info, err := m.fs.Stat(src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				m.logger.Debug("skipping missing file", "path", rel)
			} else {
				m.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			m.logger.Warn("skipping non-regular file", "path", rel)
			continue
		}

		data, err := fileutil.ReadFileWithLimit(m.fs, src)
		if err != nil {
			m.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			continue
		}

		dst := filepath.Join(dataDir, filepath.FromSlash(rel))
		if err := m.fs.MkdirAll(filepath.Dir(dst), paths.DefaultDirPerm); err != nil {
			return nil, errors.Wrapf(err, "creating directory for %s", rel)
		}
		mode := info.Mode().Perm()
		if err := writeSynced(m.fs, dst, data, mode); err != nil {
			return nil, errors.Wrapf(err, "copying %s", rel)
		}

		sum := sha256.Sum256(data)
		entries = append(entries, FileEntry{
			RelativePath: rel,
			SnapshotRef:  rel,
			SHA256:       hex.EncodeToString(sum[:]),
			Mode:         mode,
			Size:         int64(len(data)),
		})
		m.logger.Log(context.Background(), logging.LevelTrace, "captured file", "path", rel, "bytes", len(data))
	}

	return entries, nil
}

// reserve picks an unused id and claims its payload directory. Claiming uses
// an exclusive Mkdir so concurrent processes never share a directory.
func (m *Manager) reserve(now time.Time) (string, string, error) {
	if err := m.fs.MkdirAll(m.dir, paths.DefaultDirPerm); err != nil {
		return "", "", errors.Wrap(err, "creating backup store")
	}

	for range maxIDAttempts {
		id := newID(now)
		dataDir := m.dataDir(id)

		if err := m.fs.Mkdir(dataDir, paths.DefaultDirPerm); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return "", "", errors.Wrap(err, "creating backup directory")
		}

		// A stale record without a directory must not be shadowed.
		if _, err := m.fs.Stat(m.store.recordPath(id)); err == nil {
			m.discard(dataDir)
			continue
		}
		return id, dataDir, nil
	}

	return "", "", errors.Newf("could not allocate a unique backup id after %d attempts", maxIDAttempts)
}

// discard removes a payload directory this process created.
func (m *Manager) discard(dataDir string) {
	if err := m.fs.RemoveAll(dataDir); err != nil {
		m.logger.Warn("failed to clean up backup directory", "dir", dataDir, "error", err)
	}
}

// newID returns a time-ordered id: UTC time to the millisecond plus four
// random hex characters.
func newID(now time.Time) string {
	return now.UTC().Format("20060102T150405.000") + "-" + uuid.NewString()[:4]
}

// writeSynced creates path exclusively, writes data, and fsyncs it.
func writeSynced(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return errors.Wrap(err, "creating payload file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "writing payload file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "syncing payload file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing payload file")
	}
	return errors.Wrap(fsys.Chmod(path, perm), "setting payload permissions")
}
