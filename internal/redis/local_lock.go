package redisclient

import (
	"context"
	"sync"
)

// localDayLocker provides the same contract as the Redis locker inside a
// single process. Contended keys fail fast like SetNX does.
type localDayLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalDayLocker is used when the service runs as a single instance
// without Redis.
func NewLocalDayLocker() Locker {
	return &localDayLocker{held: make(map[string]struct{})}
}

func (l *localDayLocker) WithDayLock(ctx context.Context, days []DayKey, fn func(ctx context.Context) error) error {
	keys := lockKeys(days)

	l.mu.Lock()
	for _, k := range keys {
		if _, busy := l.held[k]; busy {
			l.mu.Unlock()
			return ErrLockNotAcquired
		}
	}
	for _, k := range keys {
		l.held[k] = struct{}{}
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		for _, k := range keys {
			delete(l.held, k)
		}
		l.mu.Unlock()
	}()

	return fn(ctx)
}
