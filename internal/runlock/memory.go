package runlock

import (
	"context"
	"sync"

	"encore/pkg/sentinel"
)

// MemoryLocker is the in-process locker used when Redis is not configured.
// Single-flight is then only guaranteed within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Acquire(_ context.Context, entity string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[entity] {
		return nil, sentinel.ErrLocked
	}
	l.held[entity] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, entity)
	}
	return release, nil
}
