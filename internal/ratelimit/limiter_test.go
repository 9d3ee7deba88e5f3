package ratelimit_test

import (
	"testing"
	"time"

	"github.com/hashnet666/hydra-scanner-backend/internal/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Quota(t *testing.T) {
	t.Parallel()
	l := ratelimit.New(3, time.Hour)

	for range 3 {
		require.True(t, l.Allow("10.0.0.1"))
	}
	require.False(t, l.Allow("10.0.0.1"))
	// other clients are unaffected
	require.True(t, l.Allow("10.0.0.2"))
}

func TestLimiter_WindowSlides(t *testing.T) {
	t.Parallel()
	now := time.Now()
	l := ratelimit.New(2, time.Hour).WithClock(func() time.Time { return now })

	require.True(t, l.Allow("c"))
	now = now.Add(30 * time.Minute)
	require.True(t, l.Allow("c"))
	require.False(t, l.Allow("c"))

	// the first stamp falls out of the window, freeing one slot
	now = now.Add(31 * time.Minute)
	require.True(t, l.Allow("c"))
	require.False(t, l.Allow("c"))
}

func TestLimiter_RejectionConsumesNoSlot(t *testing.T) {
	t.Parallel()
	now := time.Now()
	l := ratelimit.New(1, time.Hour).WithClock(func() time.Time { return now })

	require.True(t, l.Allow("c"))
	for range 10 {
		require.False(t, l.Allow("c"))
	}
	// only the accepted stamp counts, so the slot frees when it expires
	now = now.Add(61 * time.Minute)
	require.True(t, l.Allow("c"))
}

func TestLimiter_Sweep(t *testing.T) {
	t.Parallel()
	now := time.Now()
	l := ratelimit.New(5, time.Hour).WithClock(func() time.Time { return now })

	require.True(t, l.Allow("idle"))
	now = now.Add(2 * time.Hour)
	require.True(t, l.Allow("busy"))

	require.Equal(t, 1, l.Sweep())
	require.Equal(t, 1, l.Len())

	// the evicted client starts from a clean slate
	require.True(t, l.Allow("idle"))
}
