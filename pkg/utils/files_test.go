package utils

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestListFilesByExt(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.WAV", "notes.csv", "c.wav.bak"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	got, err := ListFilesByExt(dir, ".wav")
	if err != nil {
		t.Fatalf("ListFilesByExt failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.WAV"), filepath.Join(dir, "b.wav")}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, expected %v", got, want)
	}

	if _, err := ListFilesByExt(filepath.Join(dir, "missing"), ".wav"); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"/data/fold1_room1_mix001.wav": "fold1_room1_mix001",
		"meta.tar.gz":                  "meta.tar",
		"noext":                        "noext",
	}
	for in, want := range tests {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "src.tmp"), filepath.Join(dir, "dst.wav")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
	if err := MoveFile(src, dst); err == nil {
		t.Error("Expected error moving a missing file")
	}
}
