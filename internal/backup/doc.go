// Package backup snapshots workspace files before pnpm-catalog rewrites them
// and restores them on undo.
//
// # Store Layout
//
// Each backup is one manifest record plus one payload directory that mirrors
// the workspace-relative paths of the captured files:
//
//	<workspace>/node_modules/.cache/pnpm-catalog/backups/
//	├── 20260123T100712.345-9f3c.json
//	└── 20260123T100712.345-9f3c/
//	    ├── package.json
//	    └── packages/app/package.json
//
// Records are written last, atomically and fsynced, so an interrupted backup
// is never listed. Deleting removes the record first, then the directory.
// No locks are taken: concurrent processes each claim their own directory
// with an exclusive mkdir.
//
// # Creating Backups
//
//	mgr := backup.NewManager(root)
//	manifest, err := mgr.Create([]string{"package.json", "packages/app/package.json"}, "pre-rewrite")
//	if errors.Is(err, backup.ErrNothingToBackUp) {
//	    // none of the files exist
//	}
//
// Missing or unreadable files are skipped rather than failing the backup.
//
// # Restoring Backups
//
//	result, err := mgr.Restore(manifest.ID)
//	switch {
//	case errors.Is(err, backup.ErrBackupNotFound):
//	case result.Partial():
//	}
//
// Each payload is checked against the SHA256 recorded in the manifest before
// it is written back. A failing file is reported in [RestoreResult.Failed]
// and does not stop the remaining files.
//
// # Listing and Lifecycle
//
// [Manager.List] returns backups newest first, [Manager.Latest] and
// [Manager.Find] resolve a single backup (nil when absent), and
// [Manager.Delete] and [Manager.Clear] remove backups explicitly. Backups are
// never pruned automatically.
//
// [Manager.Verify] re-hashes a backup without restoring it. [Manager.Unreadable]
// and [Manager.Orphans] report records that fail to load and payload
// directories left without a record; neither is cleaned up implicitly.
package backup
