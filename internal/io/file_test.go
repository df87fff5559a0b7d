package ioutils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"model: v1/2", "model_ v1_2"},
		{"weights...", "weights"},
		{"Name   with  spaces", "Name with spaces"},
		{"ok.gguf", "ok.gguf"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPartialPath(t *testing.T) {
	got := PartialPath(filepath.Join("models", "m.gguf"), "abc")
	want := filepath.Join("models", ".m.gguf.abc.part")
	if got != want {
		t.Errorf("PartialPath() = %q, want %q", got, want)
	}
	if PartialPath("m.gguf", "a") == PartialPath("m.gguf", "b") {
		t.Error("different tags must give different partial paths")
	}
}

func TestOpenPartialAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".x.part")

	f, size, err := OpenPartial(path)
	if err != nil {
		t.Fatalf("OpenPartial() error: %v", err)
	}
	if size != 0 {
		t.Errorf("size = %d, want 0", size)
	}
	f.Write([]byte("hello"))
	f.Close()

	f, size, err = OpenPartial(path)
	if err != nil {
		t.Fatalf("OpenPartial() error: %v", err)
	}
	defer f.Close()
	if size != 5 {
		t.Errorf("size after reopen = %d, want 5", size)
	}
}

func TestVerifyAndCommit(t *testing.T) {
	dir := t.TempDir()
	content := []byte("model weights")
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	part := filepath.Join(dir, ".m.part")
	dest := filepath.Join(dir, "m.gguf")
	if err := os.WriteFile(part, content, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		size    int64
		digest  string
		wantErr error
	}{
		{"no checks", 0, "", nil},
		{"size ok", int64(len(content)), "", nil},
		{"digest ok", int64(len(content)), digest, nil},
		{"wrong size", 3, "", ErrSizeMismatch},
		{"wrong digest", 0, "00ff", ErrChecksumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(part, tt.size, tt.digest)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := Commit(part, dest); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if _, err := os.Stat(part); !os.IsNotExist(err) {
		t.Error("partial file should be gone after commit")
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != string(content) {
		t.Errorf("dest content = %q, err %v", got, err)
	}
}

func TestDiscardMissing(t *testing.T) {
	if err := Discard(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("Discard() on missing file = %v", err)
	}
}
