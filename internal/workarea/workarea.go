package workarea

import (
	"encoding/hex"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// digestSalt is mixed into the second xxhash pass so the two 64-bit hashes
// that make up Digest are independent of each other rather than the same
// value twice.
const digestSalt = "git-filter-mirror/workarea/v1"

// Digest returns a stable, filesystem-safe identifier for s. Two 64-bit
// xxhash passes are concatenated to get a 128-bit-ish digest rather than
// adding a dedicated 128-bit hash dependency (see SPEC_FULL.md, open
// question 2).
func Digest(s string) string {
	h1 := xxhash.Sum64String(s)
	h2 := xxhash.Sum64String(digestSalt + s)

	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[i] = byte(h1 >> (8 * i))
		buf[8+i] = byte(h2 >> (8 * i))
	}
	return hex.EncodeToString(buf)
}

// Layout is the set of paths §3 defines for one (source, destination) pair
// under a workdir root.
type Layout struct {
	Root string

	// SourceDir is the bare mirror of the source repo: source-<digest(source)>.
	SourceDir string

	// WorkerDir is the bare scratch repo: worker-<digest(source∥destination)>.
	WorkerDir string

	// LockPath is the exclusive-run sentinel file for WorkerDir.
	LockPath string

	// FilterScratchDir is the transient per-invocation scratch for the
	// rewrite engine; removed before each branch rewrite.
	FilterScratchDir string

	// MapSnapshotPath is the transient on-disk copy of filter.map used
	// for C7's random-access ancestor lookups.
	MapSnapshotPath string
}

// New computes the Layout for a given workdir root and a source/destination
// URL pair. The caller is expected to have already reduced both URLs to a
// scheme-independent key (see giturl.CanonicalKey) so the same remote
// written as scp-like, ssh:// or https:// still hashes identically.
func New(root, sourceURL, destinationURL string) Layout {
	sourceDigest := Digest(sourceURL)
	workerDigest := Digest(sourceURL + "\x00" + destinationURL)

	workerBase := "worker-" + workerDigest

	return Layout{
		Root:             root,
		SourceDir:        filepath.Join(root, "source-"+sourceDigest),
		WorkerDir:        filepath.Join(root, workerBase),
		LockPath:         filepath.Join(root, workerBase+".lock"),
		FilterScratchDir: filepath.Join(root, workerBase+".filter-branch"),
		MapSnapshotPath:  filepath.Join(root, workerBase+".map"),
	}
}
