package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"github.com/thoreinstein/pnpm-catalog/internal/logging"
)

// steppingClock returns successive instants one second apart.
func steppingClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

func newTestManager(t *testing.T, root string, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{
		WithLogger(logging.ForTest(t)),
		WithClock(steppingClock(time.Date(2026, 1, 23, 10, 7, 12, 0, time.UTC))),
	}, opts...)
	return NewManager(root, opts...)
}

func TestCreateRestore_Scenario(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "1")
	writeFile(t, root, "b.json", "2")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"a.json", "b.json"}, "pre-rewrite")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(manifest.Files) != 2 {
		t.Fatalf("manifest has %d files, want 2", len(manifest.Files))
	}
	if manifest.Description != "pre-rewrite" {
		t.Errorf("Description = %q, want %q", manifest.Description, "pre-rewrite")
	}

	writeFile(t, root, "a.json", "X")
	writeFile(t, root, "b.json", "X")

	result, err := mgr.Restore(manifest.ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.Restored != 2 || result.Partial() {
		t.Errorf("Restore() restored %d of %d, want 2 of 2", result.Restored, result.Total)
	}
	if got := readFile(t, root, "a.json"); got != "1" {
		t.Errorf("a.json = %q, want %q", got, "1")
	}
	if got := readFile(t, root, "b.json"); got != "2" {
		t.Errorf("b.json = %q, want %q", got, "2")
	}
}

func TestRestore_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"root"}`)
	writeFile(t, root, "packages/app/package.json", `{"name":"app"}`)

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"package.json", "packages/app/package.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	writeFile(t, root, "packages/app/package.json", `{"name":"app","dependencies":{"react":"catalog:"}}`)

	for i := range 2 {
		result, err := mgr.Restore(manifest.ID)
		if err != nil {
			t.Fatalf("Restore() #%d error = %v", i+1, err)
		}
		if result.Restored != 2 {
			t.Errorf("Restore() #%d restored %d, want 2", i+1, result.Restored)
		}
		if got := readFile(t, root, "packages/app/package.json"); got != `{"name":"app"}` {
			t.Errorf("after restore #%d content = %q", i+1, got)
		}
	}

	// The manifest survives restores
	info, err := mgr.Find(manifest.ID)
	if err != nil || info == nil {
		t.Fatalf("Find() after restore = %v, %v; want backup", info, err)
	}
}

func TestRestore_RecreatesMissingDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "apps/web/package.json", "web")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{filepath.Join(root, "apps", "web", "package.json")}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if manifest.Files[0].RelativePath != "apps/web/package.json" {
		t.Errorf("RelativePath = %q, want apps/web/package.json", manifest.Files[0].RelativePath)
	}

	if err := os.RemoveAll(filepath.Join(root, "apps")); err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.Restore(manifest.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := readFile(t, root, "apps/web/package.json"); got != "web" {
		t.Errorf("content = %q, want %q", got, "web")
	}
}

func TestRestore_PreservesMode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "run.sh", "#!/bin/sh\n")
	if err := os.Chmod(filepath.Join(root, "run.sh"), 0o755); err != nil {
		t.Fatal(err)
	}

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"run.sh"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := os.Chmod(filepath.Join(root, "run.sh"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.Restore(manifest.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "run.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

func TestRestore_NotFound(t *testing.T) {
	mgr := newTestManager(t, t.TempDir())

	result, err := mgr.Restore("20260101T000000.000-dead")
	if !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("Restore() error = %v, want ErrBackupNotFound", err)
	}
	if result != nil {
		t.Errorf("Restore() result = %+v, want nil", result)
	}
}

func TestRestore_PartialWhenPayloadCorrupted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "1")
	writeFile(t, root, "b.json", "2")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"a.json", "b.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Tamper with one payload and remove nothing else
	payload := filepath.Join(mgr.Dir(), manifest.ID, "b.json")
	if err := os.WriteFile(payload, []byte("tampered"), 0o600); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "a.json", "X")
	writeFile(t, root, "b.json", "X")

	result, err := mgr.Restore(manifest.ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.Restored != 1 || result.Total != 2 || !result.Partial() {
		t.Fatalf("Restore() = %+v, want 1 of 2 restored", result)
	}
	if len(result.Failed) != 1 || result.Failed[0].Path != "b.json" {
		t.Fatalf("Failed = %+v, want b.json", result.Failed)
	}
	if !errors.Is(result.Failed[0].Err, ErrBackupCorrupted) {
		t.Errorf("Failed[0].Err = %v, want ErrBackupCorrupted", result.Failed[0].Err)
	}
	if got := readFile(t, root, "a.json"); got != "1" {
		t.Errorf("a.json = %q, want %q", got, "1")
	}
	if got := readFile(t, root, "b.json"); got != "X" {
		t.Errorf("b.json should be left untouched, got %q", got)
	}
}

func TestRestore_ZeroRestoredIsNotNotFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "1")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"a.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := os.Remove(filepath.Join(mgr.Dir(), manifest.ID, "a.json")); err != nil {
		t.Fatal(err)
	}

	result, err := mgr.Restore(manifest.ID)
	if err != nil {
		t.Fatalf("Restore() error = %v, want a result", err)
	}
	if result.Restored != 0 || result.Total != 1 {
		t.Errorf("Restore() = %+v, want 0 of 1", result)
	}
}

func TestCreate_PartialSourceLoss(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "a")
	writeFile(t, root, "c.json", "c")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"a.json", "b.json", "c.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got := manifest.Paths()
	want := []string{"a.json", "c.json"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestCreate_NothingToBackUp(t *testing.T) {
	root := t.TempDir()
	mgr := newTestManager(t, root)

	tests := []struct {
		name  string
		files []string
	}{
		{"no files", nil},
		{"all missing", []string{"missing.json"}},
		{"outside root", []string{"../escape.json"}},
		{"directory", []string{"."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest, err := mgr.Create(tt.files, "")
			if !errors.Is(err, ErrNothingToBackUp) {
				t.Fatalf("Create() error = %v, want ErrNothingToBackUp", err)
			}
			if manifest != nil {
				t.Errorf("Create() manifest = %+v, want nil", manifest)
			}
		})
	}

	infos, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List() = %d backups, want 0", len(infos))
	}

	// No payload directories are left behind
	entries, err := os.ReadDir(mgr.Dir())
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("store contains %d entries, want 0", len(entries))
	}
}

func TestCreate_DeduplicatesAndNeverTouchesOriginals(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "original")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"a.json", "./a.json", filepath.Join(root, "a.json")}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(manifest.Files) != 1 {
		t.Errorf("manifest has %d files, want 1", len(manifest.Files))
	}
	if got := readFile(t, root, "a.json"); got != "original" {
		t.Errorf("original modified: %q", got)
	}
}

func TestCreate_Permissions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "{}")

	mgr := newTestManager(t, root)
	manifest, err := mgr.Create([]string{"a.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(mgr.Dir(), manifest.ID))
	if err != nil {
		t.Fatalf("stat backup directory: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("backup directory perm = %o, want 700", info.Mode().Perm())
	}

	info, err = os.Stat(filepath.Join(mgr.Dir(), manifest.ID+".json"))
	if err != nil {
		t.Fatalf("stat manifest: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("manifest perm = %o, want 600", info.Mode().Perm())
	}
}

func TestCreate_UniqueIDsWithFrozenClock(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/ws/a.json", []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	frozen := time.Date(2026, 1, 23, 10, 7, 12, 0, time.UTC)
	mgr := NewManager("/ws", WithFs(fsys), WithClock(func() time.Time { return frozen }), WithLogger(logging.ForTest(t)))

	seen := make(map[string]bool)
	for range 20 {
		manifest, err := mgr.Create([]string{"a.json"}, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[manifest.ID] {
			t.Fatalf("duplicate backup id %s", manifest.ID)
		}
		seen[manifest.ID] = true
	}
}

func TestList_NewestFirst(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "a")
	mgr := newTestManager(t, root)

	empty, err := mgr.Latest()
	if err != nil || empty != nil {
		t.Fatalf("Latest() on empty store = %v, %v; want nil, nil", empty, err)
	}

	var ids []string
	for range 3 {
		m, err := mgr.Create([]string{"a.json"}, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, m.ID)
	}

	infos, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("List() returned %d backups, want 3", len(infos))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if infos[i].Manifest.ID != want {
			t.Errorf("List()[%d] = %s, want %s", i, infos[i].Manifest.ID, want)
		}
	}
	if infos[0].Size != 1 {
		t.Errorf("Size = %d, want 1", infos[0].Size)
	}

	latest, err := mgr.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest == nil || latest.Manifest.ID != infos[0].Manifest.ID {
		t.Errorf("Latest() = %v, want %s", latest, infos[0].Manifest.ID)
	}
}

func TestSortNewestFirst_TieBreaksByID(t *testing.T) {
	infos := []BackupInfo{
		{Manifest: BackupManifest{ID: "20260101T000000.000-aaaa", Timestamp: 10}},
		{Manifest: BackupManifest{ID: "20260101T000000.000-cccc", Timestamp: 10}},
		{Manifest: BackupManifest{ID: "20251231T000000.000-ffff", Timestamp: 5}},
		{Manifest: BackupManifest{ID: "20260101T000000.000-bbbb", Timestamp: 10}},
	}

	SortNewestFirst(infos)

	want := []string{
		"20260101T000000.000-cccc",
		"20260101T000000.000-bbbb",
		"20260101T000000.000-aaaa",
		"20251231T000000.000-ffff",
	}
	for i, w := range want {
		if infos[i].Manifest.ID != w {
			t.Errorf("infos[%d] = %s, want %s", i, infos[i].Manifest.ID, w)
		}
	}
}

func TestList_SkipsCorruptAndInterruptedBackups(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "a")
	mgr := newTestManager(t, root)

	good, err := mgr.Create([]string{"a.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Unparseable record
	if err := os.WriteFile(filepath.Join(mgr.Dir(), "20990101T000000.000-bad0.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Interrupted create: payload directory without a record
	if err := os.MkdirAll(filepath.Join(mgr.Dir(), "20990101T000000.000-half", "a.json"), 0o700); err != nil {
		t.Fatal(err)
	}

	infos, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 1 || infos[0].Manifest.ID != good.ID {
		t.Fatalf("List() = %+v, want only %s", infos, good.ID)
	}

	info, err := mgr.Find("20990101T000000.000-bad0")
	if err != nil || info != nil {
		t.Errorf("Find(corrupt) = %v, %v; want nil, nil", info, err)
	}
}

func TestDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "a")
	mgr := newTestManager(t, root)

	manifest, err := mgr.Create([]string{"a.json"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := mgr.Delete(manifest.ID)
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v; want true, nil", ok, err)
	}

	info, err := mgr.Find(manifest.ID)
	if err != nil || info != nil {
		t.Errorf("Find() after delete = %v, %v; want nil, nil", info, err)
	}
	if _, err := os.Stat(filepath.Join(mgr.Dir(), manifest.ID)); !os.IsNotExist(err) {
		t.Errorf("backup directory still exists: %v", err)
	}

	ok, err = mgr.Delete(manifest.ID)
	if err != nil || ok {
		t.Errorf("second Delete() = %v, %v; want false, nil", ok, err)
	}

	ok, err = mgr.Delete("../../etc")
	if err != nil || ok {
		t.Errorf("Delete(invalid id) = %v, %v; want false, nil", ok, err)
	}
}

func TestClear(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "a")
	mgr := newTestManager(t, root)

	n, err := mgr.Clear()
	if err != nil || n != 0 {
		t.Fatalf("Clear() on empty store = %d, %v; want 0, nil", n, err)
	}
	if _, err := os.Stat(mgr.Dir()); !os.IsNotExist(err) {
		t.Errorf("Clear() on empty store should not create %s", mgr.Dir())
	}

	for range 3 {
		if _, err := mgr.Create([]string{"a.json"}, ""); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err = mgr.Clear()
	if err != nil || n != 3 {
		t.Fatalf("Clear() = %d, %v; want 3, nil", n, err)
	}

	infos, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List() after Clear() = %d backups, want 0", len(infos))
	}
}

func TestRoundTrip_MemFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := map[string][]byte{
		"package.json":               []byte("{\"name\":\"root\"}\n"),
		"packages/ui/package.json":   []byte("{\"name\":\"ui\"}\n"),
		"packages/core/package.json": {0x00, 0xff, 0x10},
	}
	var rels []string
	for rel, data := range files {
		if err := afero.WriteFile(fsys, filepath.Join("/ws", filepath.FromSlash(rel)), data, 0o644); err != nil {
			t.Fatal(err)
		}
		rels = append(rels, rel)
	}

	mgr := NewManager("/ws", WithFs(fsys), WithBackupDir("/store"), WithLogger(logging.ForTest(t)))
	manifest, err := mgr.Create(rels, "mem")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for rel := range files {
		if err := afero.WriteFile(fsys, filepath.Join("/ws", filepath.FromSlash(rel)), []byte("mutated"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := mgr.Restore(manifest.ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.Restored != len(files) {
		t.Errorf("Restored = %d, want %d", result.Restored, len(files))
	}
	for rel, want := range files {
		got, err := afero.ReadFile(fsys, filepath.Join("/ws", filepath.FromSlash(rel)))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}
}
