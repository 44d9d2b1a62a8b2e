package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	cases := map[string]string{
		"":            "",
		"/tmp":        "/tmp",
		"~":           home,
		"~/models":    filepath.Join(home, "models"),
		"~other/x":    "~other/x",
		"rel/~/stays": "rel/~/stays",
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "m.gguf")
	if err := os.WriteFile(f, []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !FileExists(f) {
		t.Fatalf("expected file to exist")
	}
	if FileExists(dir) {
		t.Fatalf("directory must not count as a file")
	}
	if FileExists(filepath.Join(dir, "missing")) || FileExists("") {
		t.Fatalf("missing or empty path must not exist")
	}
	if !DirExists(dir) || DirExists(f) || DirExists("") {
		t.Fatalf("unexpected DirExists results")
	}
}
