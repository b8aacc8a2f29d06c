package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyLocks serializes work per interaction key. Entries are dropped once nobody holds or waits
// for them.
type keyLocks struct {
	mu   sync.Mutex
	held map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

// lock blocks until key is free or ctx ends. The returned func releases the key.
func (k *keyLocks) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.held == nil {
		k.held = make(map[string]*keyLock)
	}
	l, ok := k.held[key]
	if !ok {
		l = &keyLock{sem: semaphore.NewWeighted(1)}
		k.held[key] = l
	}
	l.refs++
	k.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		k.drop(key, l)
		return nil, err
	}
	return func() {
		l.sem.Release(1)
		k.drop(key, l)
	}, nil
}

func (k *keyLocks) drop(key string, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.held, key)
	}
	k.mu.Unlock()
}
