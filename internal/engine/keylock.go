package engine

import (
	"sync"

	"liquidityPilot/internal/model"
)

// keyLock hands out one mutex per config key and drops it once unused.
type keyLock struct {
	mu    sync.Mutex
	locks map[model.ConfigKey]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[model.ConfigKey]*keyEntry)}
}

// Lock blocks until key is free and returns its unlock function.
func (l *keyLock) Lock(key model.ConfigKey) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
