package store

import "sync"

// KeyedLock serialises work per entity key. Entries are reference counted and
// released once no goroutine holds or waits on them.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyedEntry)}
}

// Lock acquires the lock for key and returns its unlock func.
func (k *KeyedLock) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
