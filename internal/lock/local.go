package lock

import (
	"context"
	"sync"
	"time"

	"fitbuddy/backend/internal/apperror"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process keyed mutex. It is enough for a single instance;
// entries are dropped once nobody holds or waits for them.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// NewLocal creates a Local locker. A zero wait bounds waiting by ctx only.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		entries: make(map[string]*entry),
		wait:    wait,
	}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, apperror.ErrLockFailed.Wrap(ctx.Err())
	}
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size returns the number of live keys.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
