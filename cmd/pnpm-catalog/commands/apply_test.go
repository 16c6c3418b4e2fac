package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/pnpm-catalog/internal/backup"
	"github.com/thoreinstein/pnpm-catalog/internal/cli/prompt"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
	"github.com/thoreinstein/pnpm-catalog/internal/logging"
	"github.com/thoreinstein/pnpm-catalog/internal/rewrite"
	"github.com/thoreinstein/pnpm-catalog/internal/workspace"
)

const testWorkspaceYAML = `packages:
  - "packages/*"
catalog:
  react: ^18.2.0
  lodash: ^4.17.21
catalogs:
  legacy:
    react: ^16.14.0
`

const testAppPackage = `{
  "name": "app",
  "dependencies": {
    "react": "^18.0.0",
    "lodash": "^4.17.0",
    "zod": "^3.0.0"
  }
}
`

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newApplyEnv(t *testing.T, root, input string, yes bool) (applyEnv, *backup.Manager) {
	t.Helper()
	logger := logging.ForTest(t)

	ws, err := workspace.Load(root, workspace.WithLogger(logger))
	require.NoError(t, err)

	mgr := backup.NewManager(root, backup.WithLogger(logger))
	confirmer, picker := prompt.New(strings.NewReader(input), &bytes.Buffer{}, yes)

	return applyEnv{
		Workspace: ws,
		Rewriter:  rewrite.New(root, mgr, rewrite.WithLogger(logger)),
		Confirmer: confirmer,
		Picker:    picker,
		SkipDirs:  []string{mgr.Dir()},
	}, mgr
}

func readWorkspaceFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestApply_DefaultCatalog(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml":       testWorkspaceYAML,
		"package.json":              "{\"name\":\"root\"}\n",
		"packages/app/package.json": testAppPackage,
	})
	env, mgr := newApplyEnv(t, root, "", true)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(&buf, env, applyOptions{}))

	out := buf.String()
	assert.Contains(t, out, "Rewrote 2 dependencies in 1 file.")

	got := readWorkspaceFile(t, root, "packages/app/package.json")
	assert.Contains(t, got, `"react": "catalog:"`)
	assert.Contains(t, got, `"lodash": "catalog:"`)
	assert.Contains(t, got, `"zod": "^3.0.0"`)
	assert.Equal(t, "{\"name\":\"root\"}\n", readWorkspaceFile(t, root, "package.json"))

	latest, err := mgr.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, []string{"packages/app/package.json"}, latest.Manifest.Paths())
	assert.Contains(t, out, latest.Manifest.ID)
}

func TestApply_ThenUndoRestoresOriginal(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml":       testWorkspaceYAML,
		"packages/app/package.json": testAppPackage,
	})
	env, mgr := newApplyEnv(t, root, "", true)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(&buf, env, applyOptions{Catalog: "legacy", Description: "move react"}))
	assert.Contains(t, readWorkspaceFile(t, root, "packages/app/package.json"), `"react": "catalog:legacy"`)

	confirmer, picker := prompt.New(strings.NewReader("y\ny\n"), &bytes.Buffer{}, false)
	buf.Reset()
	require.NoError(t, runUndoWithWriter(&buf, undoEnv{Manager: mgr, Confirmer: confirmer, Picker: picker},
		undoRequest{Action: undoRestore, Format: formatTable}))

	assert.Equal(t, testAppPackage, readWorkspaceFile(t, root, "packages/app/package.json"))
	infos, err := mgr.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestApply_DryRun(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml":       testWorkspaceYAML,
		"packages/app/package.json": testAppPackage,
	})
	env, mgr := newApplyEnv(t, root, "", true)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(&buf, env, applyOptions{DryRun: true, Deps: []string{"react"}}))

	assert.Contains(t, buf.String(), "Dry run: would rewrite 1 dependency in 1 file.")
	assert.Equal(t, testAppPackage, readWorkspaceFile(t, root, "packages/app/package.json"))

	infos, err := mgr.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestApply_Declined(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml":       testWorkspaceYAML,
		"packages/app/package.json": testAppPackage,
	})
	env, mgr := newApplyEnv(t, root, "n\n", false)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(&buf, env, applyOptions{}))

	assert.Contains(t, buf.String(), "Operation cancelled.")
	assert.Equal(t, testAppPackage, readWorkspaceFile(t, root, "packages/app/package.json"))
	infos, err := mgr.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestApply_NothingToRewrite(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml":       testWorkspaceYAML,
		"packages/lib/package.json": "{\"dependencies\":{\"react\":\"catalog:\"}}\n",
	})
	env, _ := newApplyEnv(t, root, "", true)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(&buf, env, applyOptions{}))
	assert.Contains(t, buf.String(), "Nothing to rewrite")
}

func TestApply_Errors(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml":       testWorkspaceYAML,
		"packages/app/package.json": testAppPackage,
	})

	tests := []struct {
		name string
		opts applyOptions
	}{
		{"unknown catalog", applyOptions{Catalog: "missing"}},
		{"invalid catalog name", applyOptions{Catalog: "bad name"}},
		{"dep not in catalog", applyOptions{Deps: []string{"zod"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := newApplyEnv(t, root, "", true)

			var buf bytes.Buffer
			err := runApplyWithWriter(&buf, env, tt.opts)
			require.Error(t, err)
			assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
			assert.Equal(t, testAppPackage, readWorkspaceFile(t, root, "packages/app/package.json"))
		})
	}
}

func TestApply_PicksCatalogWithoutDefault(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml": `packages:
  - "packages/*"
catalogs:
  react16:
    react: ^16.14.0
  react18:
    react: ^18.2.0
`,
		"packages/app/package.json": testAppPackage,
	})
	env, _ := newApplyEnv(t, root, "2\ny\n", false)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(&buf, env, applyOptions{}))
	assert.Contains(t, readWorkspaceFile(t, root, "packages/app/package.json"), `"react": "catalog:react18"`)
}

func TestApply_NoCatalogs(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"pnpm-workspace.yaml": "packages:\n  - \"packages/*\"\n",
	})
	env, _ := newApplyEnv(t, root, "", true)

	err := runApplyWithWriter(&bytes.Buffer{}, env, applyOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
}
