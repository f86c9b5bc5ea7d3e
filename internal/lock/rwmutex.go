package lock

import (
	"github.com/sasha-s/go-deadlock"
)

// RWMutex is a drop-in for sync.RWMutex that additionally detects lock-order
// inversions across goroutines. SourceMirror and WorkerRepo in pkg/mirror do
// not hold one.
type RWMutex = deadlock.RWMutex
