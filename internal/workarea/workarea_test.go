package workarea

import (
	"strings"
	"testing"
)

func TestDigest_stableAndDistinct(t *testing.T) {
	a := Digest("https://github.com/org/repo.git")
	b := Digest("https://github.com/org/repo.git")
	if a != b {
		t.Errorf("Digest is not stable: %q != %q", a, b)
	}

	c := Digest("https://github.com/org/other.git")
	if a == c {
		t.Errorf("different inputs produced the same digest: %q", a)
	}

	if len(a) != 32 {
		t.Errorf("expected a 32-char hex digest (128 bits), got %d chars: %q", len(a), a)
	}
}

func TestNew_layout(t *testing.T) {
	l := New("/tmp/work", "https://example.com/a.git", "https://example.com/b.git")

	if !strings.HasPrefix(l.SourceDir, "/tmp/work/source-") {
		t.Errorf("unexpected source dir: %s", l.SourceDir)
	}
	if !strings.HasPrefix(l.WorkerDir, "/tmp/work/worker-") {
		t.Errorf("unexpected worker dir: %s", l.WorkerDir)
	}
	if l.LockPath != l.WorkerDir+".lock" {
		t.Errorf("unexpected lock path: %s", l.LockPath)
	}
	if l.FilterScratchDir != l.WorkerDir+".filter-branch" {
		t.Errorf("unexpected scratch dir: %s", l.FilterScratchDir)
	}
	if l.MapSnapshotPath != l.WorkerDir+".map" {
		t.Errorf("unexpected map path: %s", l.MapSnapshotPath)
	}

	// worker digest depends on the (source, destination) pair, not just source
	l2 := New("/tmp/work", "https://example.com/a.git", "https://example.com/c.git")
	if l.WorkerDir == l2.WorkerDir {
		t.Error("expected different destination to produce different worker dir")
	}
	if l.SourceDir != l2.SourceDir {
		t.Error("expected same source to produce same source mirror dir regardless of destination")
	}
}
