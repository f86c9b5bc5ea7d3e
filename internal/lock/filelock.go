package lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// defaultRetryInterval is how long Acquire waits between contended-lock
// attempts, matching §4.4's "bounded wait interval" requirement.
const defaultRetryInterval = 2 * time.Second

// Guard is a held (or deliberately no-op'd) exclusive-run lock (C4). It must
// be released exactly once, on every exit path of the run - including panics,
// which is why callers are expected to `defer guard.Release()` immediately
// after a successful Acquire.
type Guard struct {
	path string
	f    *os.File
	noop bool
}

// NoopGuard returns a Guard that performs no locking at all. This is what
// §4.4/§6's `-no-lock` flag selects: concurrency correctness becomes the
// operator's responsibility, and that opt-out must never happen silently -
// callers must log that locking is disabled when they choose this.
func NoopGuard() *Guard {
	return &Guard{noop: true}
}

// Acquire takes an exclusive OS-level advisory lock on the sentinel file at
// path, creating it if necessary. It retries on contention every
// retryInterval (defaultRetryInterval if zero), logging a human-readable
// waiting message on each attempt, until ctx is cancelled.
func Acquire(ctx context.Context, log *slog.Logger, path string, retryInterval time.Duration) (*Guard, error) {
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file %q: %w", path, err)
	}

	attempt := 0
	for {
		attempt++
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Guard{path: path, f: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, fmt.Errorf("unable to lock file %q: %w", path, err)
		}

		log.Info("waiting for exclusive lock on worker repo", "path", path, "attempt", attempt)

		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		}
	}
}

// Release unlocks and closes the sentinel file. It is always safe to call,
// including on a NoopGuard.
func (g *Guard) Release() error {
	if g == nil || g.noop || g.f == nil {
		return nil
	}
	err := unix.Flock(int(g.f.Fd()), unix.LOCK_UN)
	closeErr := g.f.Close()
	if err != nil {
		return fmt.Errorf("unable to release lock %q: %w", g.path, err)
	}
	return closeErr
}
