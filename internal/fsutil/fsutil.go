package fsutil

import (
	"fmt"
	"os"
	"regexp"
)

const defaultDirMode = 0o755

// DirIsEmpty reports whether path exists and contains no entries.
func DirIsEmpty(path string) (bool, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(dirents) == 0, nil
}

// ReCreate removes path and any children it contains and creates a fresh
// empty directory at the same path. Used to rebuild a corrupt mirror/worker
// repo (§4.2/§4.3) and to clear the transient filter-branch scratch
// directory before each rewrite (§4.6.4).
func ReCreate(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("can't delete unusable dir: %w", err)
	}
	if err := os.MkdirAll(path, defaultDirMode); err != nil {
		return fmt.Errorf("unable to create dir: %w", err)
	}
	return nil
}

// RemoveIfExists removes path if present; a missing path is not an error.
func RemoveIfExists(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("unable to remove %q: %w", path, err)
	}
	return nil
}

var updatedRefRgx = regexp.MustCompile(`(?m)^[^=] \w+ \w+ (refs\/[^\s]+)`)

// UpdatedRefs parses the porcelain output of `git fetch --porcelain` and
// returns the ref names that were actually updated.
func UpdatedRefs(output string) []string {
	var refs []string
	for _, match := range updatedRefRgx.FindAllStringSubmatch(output, -1) {
		refs = append(refs, match[1])
	}
	return refs
}
