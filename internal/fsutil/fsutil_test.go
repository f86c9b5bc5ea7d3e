package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirIsEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := DirIsEmpty(dir)
	if err != nil || !empty {
		t.Fatalf("DirIsEmpty(fresh tempdir) = %v, %v; want true, nil", empty, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty, err = DirIsEmpty(dir)
	if err != nil || empty {
		t.Fatalf("DirIsEmpty(non-empty) = %v, %v; want false, nil", empty, err)
	}
}

func TestReCreate(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "scratch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stale"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReCreate(dir); err != nil {
		t.Fatalf("ReCreate() error: %v", err)
	}

	empty, err := DirIsEmpty(dir)
	if err != nil || !empty {
		t.Fatalf("after ReCreate, DirIsEmpty = %v, %v; want true, nil", empty, err)
	}
}

func TestUpdatedRefs(t *testing.T) {
	out := "* 0000000000000000000000000000000000000000 1111111111111111111111111111111111111111 refs/heads/dev\n" +
		"= 2222222222222222222222222222222222222222 2222222222222222222222222222222222222222 refs/heads/old\n"
	got := UpdatedRefs(out)
	want := []string{"refs/heads/dev"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("UpdatedRefs() = %v, want %v", got, want)
	}
}
