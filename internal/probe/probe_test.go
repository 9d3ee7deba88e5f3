package probe_test

import (
	"context"
	"testing"
	"time"

	"github.com/hashnet666/hydra-scanner-backend/internal/probe"
	"github.com/stretchr/testify/require"
)

func TestTunnelTypeFor(t *testing.T) {
	t.Parallel()
	require.Equal(t, "tls-tunnel", probe.TunnelTypeFor("https"))
	require.Equal(t, "http-connect", probe.TunnelTypeFor("http"))
	require.Equal(t, "socks-relay", probe.TunnelTypeFor("socks5"))
	require.Equal(t, "port-forward", probe.TunnelTypeFor("ssh"))
	require.Equal(t, "generic", probe.TunnelTypeFor("gopher"))
}

func TestSimulated(t *testing.T) {
	t.Parallel()

	t.Run("always succeeds", func(t *testing.T) {
		t.Parallel()
		sim := probe.Simulated{SuccessRatio: 1, TunnelRatio: 1}
		out := sim.Probe(t.Context(), "a", "https")
		require.True(t, out.Success)
		require.True(t, out.Tunneled)
		require.Equal(t, "tls-tunnel", out.TunnelType)
	})

	t.Run("always fails", func(t *testing.T) {
		t.Parallel()
		sim := probe.Simulated{SuccessRatio: 0}
		out := sim.Probe(t.Context(), "a", "http")
		require.False(t, out.Success)
		require.False(t, out.Tunneled)
		require.Empty(t, out.TunnelType)
	})

	t.Run("never tunneled", func(t *testing.T) {
		t.Parallel()
		sim := probe.Simulated{SuccessRatio: 1, TunnelRatio: 0}
		out := sim.Probe(t.Context(), "a", "http")
		require.True(t, out.Success)
		require.False(t, out.Tunneled)
	})

	t.Run("cancelled mid delay", func(t *testing.T) {
		t.Parallel()
		sim := probe.Simulated{MinDelay: time.Minute, MaxDelay: time.Minute, SuccessRatio: 1}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		start := time.Now()
		out := sim.Probe(ctx, "a", "http")
		require.False(t, out.Success)
		require.Less(t, time.Since(start), time.Second)
	})
}
