package async

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Mutex is a single-holder lock whose waiters are served in arrival order.
// Every Acquire must be paired with a call to the returned release func,
// including on error paths, or the queue behind it starves.
type Mutex struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

// NewMutex creates an unlocked Mutex
func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held or ctx is done
func (m *Mutex) Acquire(ctx context.Context) (release func(), err error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	m.held.Store(true)
	return m.releaser(), nil
}

// TryAcquire takes the lock only if it is free and nobody is queued
func (m *Mutex) TryAcquire() (release func(), ok bool) {
	if !m.sem.TryAcquire(1) {
		return nil, false
	}
	m.held.Store(true)
	return m.releaser(), true
}

// IsLocked reports whether the lock has a holder
func (m *Mutex) IsLocked() bool {
	return m.held.Load()
}

func (m *Mutex) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.held.Store(false)
			m.sem.Release(1)
		})
	}
}

// KeyedMutex hands out one Mutex per key
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	m    *Mutex
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Acquire locks key, queueing behind earlier callers for the same key
func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{m: NewMutex()}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	release, err := e.m.Acquire(ctx)
	if err != nil {
		k.unref(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			release()
			k.unref(key, e)
		})
	}, nil
}

// IsLocked reports whether key currently has a holder
func (k *KeyedMutex) IsLocked(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	return ok && e.m.IsLocked()
}

// Len returns the number of keys with a holder or waiter
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedMutex) unref(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
