// Package lock serializes work on a key across goroutines or processes.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func(ctx context.Context) error

type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewMemory() *Memory {
	return &Memory{held: map[string]chan struct{}{}}
}

func (m *Memory) Lock(ctx context.Context, key string) (Unlock, error) {
	for {
		m.mu.Lock()
		wait, busy := m.held[key]
		if !busy {
			done := make(chan struct{})
			m.held[key] = done
			m.mu.Unlock()
			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					m.mu.Lock()
					delete(m.held, key)
					m.mu.Unlock()
					close(done)
				})
				return nil
			}, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-wait:
		}
	}
}
