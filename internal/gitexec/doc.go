// Package gitexec runs git (and the external history-rewrite engine) as a
// foreground subprocess and captures stdout/stderr separately so callers can
// classify exit codes (see Result.ExitCode) instead of only an error value.
package gitexec
