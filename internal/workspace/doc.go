// Package workspace reads a pnpm workspace: its pnpm-workspace.yaml
// catalogs and the package.json files its packages globs select.
package workspace
