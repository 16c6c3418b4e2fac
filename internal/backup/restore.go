package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/pkg/fileutil"
)

// Restore copies every file of backup id back over the workspace.
//
// An unknown id yields ErrBackupNotFound; an unreadable record yields
// ErrManifestInvalid. Otherwise every entry is attempted: failures are
// collected in the result instead of aborting, so Restored may be anywhere
// from zero to Total. The manifest is kept, and restoring again is
// idempotent.
func (m *Manager) Restore(id string) (*RestoreResult, error) {
	if id == "" {
		return nil, errors.New("backup ID is required")
	}

	manifest, err := m.store.Load(id)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{ID: id, Total: len(manifest.Files)}
	for _, entry := range manifest.Files {
		if err := m.restoreEntry(id, entry); err != nil {
			m.logger.Warn("failed to restore file", "id", id, "path", entry.RelativePath, "error", err)
			result.Failed = append(result.Failed, FileFailure{Path: entry.RelativePath, Err: err})
			continue
		}
		result.Restored++
		m.logger.Log(context.Background(), logging.LevelTrace, "restored file", "id", id, "path", entry.RelativePath)
	}

	m.logger.Info("backup restored", "id", id, "restored", result.Restored, "total", result.Total)
	return result, nil
}

// restoreEntry verifies one payload and atomically writes it to its
// original location.
func (m *Manager) restoreEntry(id string, entry FileEntry) error {
	data, err := m.readPayload(id, entry)
	if err != nil {
		return err
	}

	dst := m.livePath(entry.RelativePath)
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", entry.RelativePath)
	}

	mode := entry.Mode.Perm()
	if mode == 0 {
		mode = 0o644
	}
	if err := fileutil.AtomicWriteFile(m.fs, dst, data, mode); err != nil {
		return errors.Wrapf(err, "restoring %s", entry.RelativePath)
	}
	return nil
}

// readPayload reads the captured content of entry and checks it against
// the recorded hash.
func (m *Manager) readPayload(id string, entry FileEntry) ([]byte, error) {
	data, err := fileutil.ReadFileWithLimit(m.fs, m.payloadPath(id, entry))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrBackupCorrupted, "payload for %s is missing", entry.RelativePath)
		}
		return nil, errors.Wrapf(err, "reading backup of %s", entry.RelativePath)
	}

	if entry.SHA256 != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != entry.SHA256 {
			return nil, errors.Wrapf(ErrBackupCorrupted, "file %s hash mismatch", entry.RelativePath)
		}
	}
	return data, nil
}
