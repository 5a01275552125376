// Package runlock provides per-entity mutual exclusion. Two concurrent
// ingestions of the same entity could double-increment versions or lose
// updates, so each entity run holds its lock for the duration of the call.
package runlock

import "context"

// Locker acquires an exclusive per-entity lock. Acquire returns
// sentinel.ErrLocked when another worker holds the lock; callers surface
// that as a conflict rather than waiting.
type Locker interface {
	Acquire(ctx context.Context, entity string) (release func(), err error)
}
