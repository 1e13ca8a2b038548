package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockFailed lock acquisition failed
var ErrLockFailed = errors.New("failed to acquire lock")

// KeyedMutex provides mutual exclusion per key within a single process.
// Operations on different keys do not block each other.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates a new keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*entry),
	}
}

// Lock acquires the mutex for key, blocking until it is available or the
// context is cancelled.
func (k *KeyedMutex) Lock(ctx context.Context, key string) error {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		// The goroutine will still grab the mutex eventually; hand it
		// straight back so the entry can be reclaimed.
		go func() {
			<-acquired
			k.unlock(key, e)
		}()
		return ctx.Err()
	}
}

// Unlock releases the mutex for key. Unlocking a key that is not held is a
// programming error and panics, same as sync.Mutex.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		panic("lock: unlock of unheld key " + key)
	}
	k.unlock(key, e)
}

func (k *KeyedMutex) unlock(key string, e *entry) {
	e.mu.Unlock()

	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}

// Len returns the number of keys currently tracked, for diagnostics.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
