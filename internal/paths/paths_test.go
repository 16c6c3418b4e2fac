package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

func TestConfigHome(t *testing.T) {
	got := ConfigHome()
	if got == "" {
		t.Error("ConfigHome() returned empty string")
	}
	if !filepath.IsAbs(got) {
		t.Errorf("ConfigHome() = %q, want absolute path", got)
	}
	if !strings.HasSuffix(AppConfigDir(), AppName) {
		t.Errorf("AppConfigDir() = %q, want suffix %q", AppConfigDir(), AppName)
	}
}

func TestResolveRoot(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	got, err := ResolveRoot("")
	if err != nil {
		t.Fatalf("ResolveRoot(\"\") error = %v", err)
	}
	if got != wd {
		t.Errorf("ResolveRoot(\"\") = %q, want %q", got, wd)
	}

	got, err = ResolveRoot("sub/../repo")
	if err != nil {
		t.Fatalf("ResolveRoot() error = %v", err)
	}
	if want := filepath.Join(wd, "repo"); got != want {
		t.Errorf("ResolveRoot() = %q, want %q", got, want)
	}

	if _, err := ResolveRoot("bad\x00path"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("ResolveRoot() with NUL error = %v, want ErrInvalidPath", err)
	}
}

func TestBackupDir(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"default", "", filepath.Join(root, "node_modules", ".cache", AppName, "backups")},
		{"relative override", ".backups", filepath.Join(root, ".backups")},
		{"absolute override", filepath.FromSlash("/var/backups"), filepath.FromSlash("/var/backups")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BackupDir(root, tt.override); got != tt.want {
				t.Errorf("BackupDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRel(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "relative", path: "a.json", want: "a.json"},
		{name: "nested relative", path: filepath.FromSlash("packages/a/package.json"), want: "packages/a/package.json"},
		{name: "absolute inside root", path: filepath.Join(root, "apps", "web", "package.json"), want: "apps/web/package.json"},
		{name: "cleaned", path: filepath.FromSlash("packages/../b.json"), want: "b.json"},
		{name: "escapes root", path: filepath.FromSlash("../other/package.json"), wantErr: ErrOutsideRoot},
		{name: "absolute outside root", path: filepath.FromSlash("/etc/passwd"), wantErr: ErrOutsideRoot},
		{name: "root itself", path: ".", wantErr: ErrInvalidPath},
		{name: "empty", path: "", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rel(root, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Rel() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Rel() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Rel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLocalSlash(t *testing.T) {
	tests := map[string]bool{
		"a.json":              true,
		"packages/a/pkg.json": true,
		"../a.json":           false,
		"/abs/a.json":         false,
		"":                    false,
		"a\\b.json":           false,
	}
	for in, want := range tests {
		if got := IsLocalSlash(in); got != want {
			t.Errorf("IsLocalSlash(%q) = %v, want %v", in, got, want)
		}
	}
}
