// Package lock serializes work on a single key, such as one booking.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be taken before the context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker hands out exclusive per-key locks.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
