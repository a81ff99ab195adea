package require

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestTempLocation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		in          string
		wantDir     string
		wantPattern string
	}{
		{"configured", dir, dir, "rite-*.mrb"},
		{"platform default", "", os.TempDir(), "rite-*.mrb"},
		{"missing", filepath.Join(dir, "gone"), ".", "tmp.*"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, p := tempLocation(tc.in)
			if d != tc.wantDir || p != tc.wantPattern {
				t.Errorf("tempLocation(%q) = %q, %q; want %q, %q", tc.in, d, p, tc.wantDir, tc.wantPattern)
			}
		})
	}
}

func TestTransientLifecycle(t *testing.T) {
	dir := t.TempDir()
	f, err := newTransient(dir)
	if err != nil {
		t.Fatalf("newTransient: %v", err)
	}
	name := f.Name()
	if filepath.Dir(name) != dir {
		t.Errorf("created in %s, want %s", filepath.Dir(name), dir)
	}

	info, err := os.Stat(name)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		t.Errorf("mode = %v, want owner-only", info.Mode().Perm())
	}

	if _, err := f.WriteString("payload"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	buf := make([]byte, 7)
	if _, err := f.Read(buf); err != nil || string(buf) != "payload" {
		t.Errorf("read back %q, %v", buf, err)
	}

	if err := f.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Errorf("file survived Release: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestTransientReleaseAfterExternalRemove(t *testing.T) {
	f, err := newTransient(t.TempDir())
	if err != nil {
		t.Fatalf("newTransient: %v", err)
	}
	f.Close()
	os.Remove(f.Name())
	if err := f.Release(); err != nil {
		t.Errorf("Release = %v, want nil when the file is already gone", err)
	}
}
