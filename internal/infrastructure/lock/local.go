// Package lock provides ItemLocker implementations: an in-process locker for
// single-instance deployments and a Redis locker shared across instances.
package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
)

type localEntry struct {
	sem  chan struct{}
	refs int
}

// LocalItemLocker serializes work per item inside one process
type LocalItemLocker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*localEntry
}

// NewLocalItemLocker creates a new LocalItemLocker
func NewLocalItemLocker() *LocalItemLocker {
	return &LocalItemLocker{entries: make(map[uuid.UUID]*localEntry)}
}

// Lock acquires every item in ascending order. If ctx ends while waiting,
// the items already held are released and ctx.Err() is returned.
func (l *LocalItemLocker) Lock(ctx context.Context, itemIDs ...uuid.UUID) (func(), error) {
	ids := ledger.SortedUnique(itemIDs)
	held := make([]uuid.UUID, 0, len(ids))

	for _, id := range ids {
		entry := l.acquireEntry(id)
		select {
		case entry.sem <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.releaseEntry(id)
			l.unlock(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(held) })
	}, nil
}

// Held returns the number of items currently locked or waited on
func (l *LocalItemLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LocalItemLocker) unlock(ids []uuid.UUID) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.mu.Lock()
		entry := l.entries[ids[i]]
		l.mu.Unlock()
		<-entry.sem
		l.releaseEntry(ids[i])
	}
}

func (l *LocalItemLocker) acquireEntry(id uuid.UUID) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalItemLocker) releaseEntry(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entries[id]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, id)
	}
}

var _ ledger.ItemLocker = (*LocalItemLocker)(nil)
