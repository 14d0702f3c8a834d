// Package lock provides the per-job mutual exclusion used by concurrent
// enrichment runs. A lock is advisory: the store's compare-and-set guard
// remains the source of truth.
package lock

import (
	"context"
	"sync"
)

// Locker acquires a named lock without blocking. ok is false when another
// holder owns key. release is nil unless ok is true.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// MemoryLocker serialises jobs within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
