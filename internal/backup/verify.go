package backup

import (
	"io/fs"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// VerifyResult reports the payload check of one backup.
type VerifyResult struct {
	ID     string
	Total  int
	Failed []FileFailure
}

// OK reports whether every payload matched its manifest entry.
func (r *VerifyResult) OK() bool {
	return len(r.Failed) == 0
}

// Verify reads every payload of backup id and checks it against the
// manifest without touching the workspace.
func (m *Manager) Verify(id string) (*VerifyResult, error) {
	manifest, err := m.store.Load(id)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{ID: id, Total: len(manifest.Files)}
	for _, entry := range manifest.Files {
		if _, err := m.readPayload(id, entry); err != nil {
			result.Failed = append(result.Failed, FileFailure{Path: entry.RelativePath, Err: err})
		}
	}
	return result, nil
}

// Unreadable returns the ids whose record exists but cannot be loaded.
func (m *Manager) Unreadable() ([]string, error) {
	ids, err := m.store.IDs()
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, id := range ids {
		if _, err := m.store.Load(id); err != nil {
			if errors.Is(err, ErrManifestInvalid) {
				bad = append(bad, id)
				continue
			}
			if !errors.Is(err, ErrBackupNotFound) {
				return nil, err
			}
		}
	}
	return bad, nil
}

// Orphans returns payload directories in the store that have no record,
// usually left behind by an interrupted Create or Delete. They are never
// removed automatically.
func (m *Manager) Orphans() ([]string, error) {
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading backup directory")
	}

	ids, err := m.store.IDs()
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || !ValidID(name) {
			continue
		}
		if !slices.Contains(ids, name) {
			orphans = append(orphans, name)
		}
	}
	slices.Sort(orphans)
	return orphans, nil
}
