// Package lock provides the two forms of mutual exclusion the pipeline
// needs: an in-process deadlock-detecting RWMutex type, and a
// cross-process FileLock (C4, the exclusive-run
// guard) serialising whole runs against the same worker repo.
package lock
