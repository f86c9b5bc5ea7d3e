// Package fsutil holds the small filesystem and git-porcelain-output
// helpers shared by the source mirror and worker repo managers.
package fsutil
