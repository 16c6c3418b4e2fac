// Package fileutil provides file system utilities including atomic write operations.
package fileutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

// AtomicWriteFile writes data to a file atomically using a temp file + rename pattern.
// The temp file is fsynced before the rename so a crash right after the call
// leaves either the old content or the complete new content.
//
// The caller is responsible for ensuring the parent directory exists.
// Permissions are applied to the final file via the perm parameter.
func AtomicWriteFile(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory for atomic rename (same filesystem required)
	tmp, err := afero.TempFile(fsys, dir, ".pnpm-catalog-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}

	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = fsys.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temp file")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}

	if err := fsys.Chmod(tmpName, perm); err != nil {
		return errors.Wrap(err, "setting file permissions")
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	renamed = true

	return nil
}

// MarshalJSON renders v as 2-space indented JSON with a trailing newline and
// without HTML escaping.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "marshaling JSON")
	}
	return buf.Bytes(), nil
}

// AtomicWriteJSON writes v as indented JSON to path atomically with the given permissions.
//
// The caller is responsible for ensuring the parent directory exists.
func AtomicWriteJSON(fsys afero.Fs, path string, v any, perm os.FileMode) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return err
	}
	return AtomicWriteFile(fsys, path, data, perm)
}
