package service

import (
	"fmt"
	"sync"
)

// entityLocker serialises writers of the same entity inside one process. Entries are
// reference counted and dropped once the last holder releases them.
type entityLocker struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func newEntityLocker() *entityLocker {
	return &entityLocker{locks: make(map[string]*entityLock)}
}

// Lock blocks until the key is free and returns its release function.
func (l *entityLocker) Lock(key string) func() {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &entityLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func lockKey(entity string, id uint) string {
	return fmt.Sprintf("%s:%d", entity, id)
}
