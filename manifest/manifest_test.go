package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[require]
tmpdir = "/var/tmp/rite"
debug-info = false
compress = true

[cache]
enabled = true
path = "build/units.db"

[log]
verbosity = 2
file = "rite.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Require.TmpDir != "/var/tmp/rite" {
		t.Errorf("tmpdir = %q, want /var/tmp/rite", m.Require.TmpDir)
	}
	if m.Require.DebugInfo {
		t.Error("debug-info = true, want false")
	}
	if !m.Require.Compress {
		t.Error("compress = false, want true")
	}
	if !m.Cache.Enabled {
		t.Error("cache enabled = false, want true")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, "build", "units.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
	if f := m.LogFile(); f == nil || *f != filepath.Join(m.Dir, "rite.log") {
		t.Errorf("log file = %v", f)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[cache]
enabled = true
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !m.Require.DebugInfo {
		t.Error("debug-info defaults to false, want true")
	}
	if m.Require.TmpDir != "" || m.Require.Compress {
		t.Errorf("require = %+v, want defaults", m.Require)
	}
	if m.Cache.Path != filepath.Join(".rite", "cache.db") {
		t.Errorf("default cache path = %q", m.Cache.Path)
	}
	if m.LogFile() != nil {
		t.Error("default log file is not stderr")
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[require\n", "parse error"},
		{"wrong type", "[require]\ncompress = \"yes\"\n", "parse error"},
		{"unknown key", "[require]\ntmp-dir = \"/tmp\"\n", "unknown key require.tmp-dir"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for a directory without rite.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[log]\nverbosity = 1\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Log.Verbosity != 1 {
		t.Errorf("verbosity = %d, want 1", m.Log.Verbosity)
	}
	abs, _ := filepath.Abs(dir)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no rite.toml exists")
	}
}

func TestAbsolutePathsKept(t *testing.T) {
	m := &Manifest{Dir: "/app", Cache: CacheConfig{Path: "/data/cache.db"}, Log: LogConfig{File: "/var/log/rite.log"}}
	if m.CachePath() != "/data/cache.db" {
		t.Errorf("cache path = %q", m.CachePath())
	}
	if f := m.LogFile(); f == nil || *f != "/var/log/rite.log" {
		t.Errorf("log file = %v", f)
	}
}
