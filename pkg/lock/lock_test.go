package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SerializesSameKey(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "nayose:7")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, unlock(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestMemory_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, u1(ctx))
	require.NoError(t, u2(ctx))
	require.NoError(t, u2(ctx))
}

func TestMemory_ContextCancel(t *testing.T) {
	l := NewMemory()
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	require.ErrorIs(t, err, ErrNotAcquired)
}
