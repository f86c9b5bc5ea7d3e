package mirror

import (
	"context"
	"os"
	"strings"

	"github.com/utilitywarehouse/git-filter-mirror/internal/gitexec"
)

// mapFileName is the path, relative to the tree of stateRef, that the
// rewrite engine keeps the commit mapping under (§3, §9 "persistent commit
// mapping").
const mapFileName = "filter.map"

// MaterializeMap extracts refs/filter-branch/state:filter.map from the
// worker repo to a local file at path, for C7's random-access ancestor
// lookups (§4.7 step 2). It is a no-op, writing an empty file, if the state
// ref or the file within it doesn't exist yet (first run).
func (w *WorkerRepo) MaterializeMap(ctx context.Context, path string) error {
	out, err := gitexec.RunGit(ctx, w.log, nil, w.dir, "show", stateRef+":"+mapFileName)
	if err != nil {
		// no state ref / no file yet: first run, empty mapping
		return os.WriteFile(path, nil, 0o644)
	}
	return os.WriteFile(path, []byte(out+"\n"), 0o644)
}

// Mapping is an in-memory view of filter.map, keyed by original SHA (§9:
// "may cache it in-memory as a hash map keyed by original SHA. The
// reference contract is the ref, not the file.").
type Mapping map[string]string

// LoadMapping parses a filter.map snapshot written by MaterializeMap.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Mapping{}, nil
		}
		return nil, err
	}

	m := Mapping{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		orig, rewritten, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		m[orig] = rewritten
	}
	return m, nil
}

// Len returns the number of mapped commits, used for the mapped-commits
// metric.
func (m Mapping) Len() int { return len(m) }
