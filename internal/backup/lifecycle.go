package backup

import (
	"github.com/cockroachdb/errors"
)

// Delete removes backup id. The record goes first so listings never see a
// backup whose payload is already gone; a crash in between leaves only an
// orphaned directory. Reports true only when the backup existed.
func (m *Manager) Delete(id string) (bool, error) {
	existed, err := m.store.Remove(id)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	if err := m.fs.RemoveAll(m.dataDir(id)); err != nil {
		return true, errors.Wrapf(err, "removing backup data %s", id)
	}

	m.logger.Info("backup deleted", "id", id)
	return true, nil
}

// Clear deletes every backup and returns how many were removed. Records
// that fail to parse are removed too. An empty store is left untouched.
func (m *Manager) Clear() (int, error) {
	ids, err := m.store.IDs()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		ok, err := m.Delete(id)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}
