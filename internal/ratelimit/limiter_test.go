package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowCeiling(t *testing.T) {
	limiter := NewFixedWindow(time.Minute, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow("1.2.3.4"), "request %d within ceiling", i+1)
	}
	assert.ErrorIs(t, limiter.Allow("1.2.3.4"), ErrRateLimited)

	// A different address has its own counter.
	assert.NoError(t, limiter.Allow("5.6.7.8"))
}

func TestFixedWindowResets(t *testing.T) {
	limiter := NewFixedWindow(time.Minute, 1)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	require.NoError(t, limiter.Allow("1.2.3.4"))
	require.ErrorIs(t, limiter.Allow("1.2.3.4"), ErrRateLimited)

	// First request after the window elapses is accepted regardless of the
	// prior count.
	now = now.Add(time.Minute + time.Second)
	assert.NoError(t, limiter.Allow("1.2.3.4"))
}

func TestFixedWindowSweep(t *testing.T) {
	limiter := NewFixedWindow(time.Minute, 5)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	require.NoError(t, limiter.Allow("1.2.3.4"))
	require.NoError(t, limiter.Allow("5.6.7.8"))
	assert.Len(t, limiter.counters, 2)

	// Still inside the grace period of one extra window: nothing evicted.
	now = now.Add(90 * time.Second)
	limiter.Sweep()
	assert.Len(t, limiter.counters, 2)

	now = now.Add(time.Minute)
	limiter.Sweep()
	assert.Empty(t, limiter.counters)
}
