package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_ExactLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	for i := range 3 {
		d := l.Check("1.2.3.4")
		assert.True(t, d.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d := l.Check("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.False(t, d.ResetAt.IsZero())
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	assert.True(t, l.Check("1.2.3.4").Allowed)
	assert.False(t, l.Check("1.2.3.4").Allowed)
	assert.True(t, l.Check("5.6.7.8").Allowed)
}

func TestCheck_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	require.True(t, l.Check("k").Allowed)
	require.True(t, l.Check("k").Allowed)
	require.False(t, l.Check("k").Allowed)

	now = now.Add(time.Minute + time.Second)
	d := l.Check("k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestCheck_DeniedDoesNotOvercount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for range 50 {
		l.Check("k")
	}

	l.mu.Lock()
	count := l.windows["k"].count
	l.mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestCheck_ConcurrentAdmitsExactlyLimit(t *testing.T) {
	const limit = 100
	l := NewLimiter(limit, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for range limit * 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("shared").Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), admitted.Load())
}

func TestReap_RemovesExpiredWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	l.Check("stale")
	now = now.Add(30 * time.Second)
	l.Check("fresh")

	now = now.Add(45 * time.Second)
	removed := l.reap()

	assert.Equal(t, 1, removed)
	l.mu.Lock()
	_, staleExists := l.windows["stale"]
	_, freshExists := l.windows["fresh"]
	l.mu.Unlock()
	assert.False(t, staleExists)
	assert.True(t, freshExists)
}
