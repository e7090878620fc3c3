package port

import (
	"context"
	"time"
)

// Lock is a distributed mutex over a named resource. Acquire failure signals
// contention, not an error; the TTL is the only liveness mechanism, so the
// critical section must finish well inside it.
type Lock interface {
	// TryLock attempts a single non-blocking acquisition.
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)

	// Unlock releases the lock only if this instance still holds it.
	// Releasing a lock that expired and was re-acquired elsewhere is a no-op.
	Unlock(ctx context.Context) error
}

type LockManager interface {
	NewLock(name string) Lock
}
