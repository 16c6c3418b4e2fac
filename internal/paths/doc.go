// Package paths resolves the directories pnpm-catalog works with: the
// workspace root, the backup store below it, and the XDG config directory.
//
// The package wraps github.com/adrg/xdg for cross-platform XDG Base Directory
// compliance. Workspace-relative paths are always slash-separated so they
// can be stored in backup manifests and compared across platforms; [Rel]
// rejects anything that would escape the workspace root.
//
//	root, _ := paths.ResolveRoot("")               // process working directory
//	store := paths.BackupDir(root, "")             // <root>/node_modules/.cache/pnpm-catalog/backups
//	rel, err := paths.Rel(root, "/repo/apps/web/package.json")
package paths
