// Package probe defines the probing capability injected into the scan core.
// The lifecycle manager never cares how a host is probed, only that the call
// may block and eventually yields an Outcome.
package probe

import (
	"context"
	"math/rand/v2"
	"time"
)

// Outcome of probing a single host. TunnelType is set only when Tunneled.
type Outcome struct {
	Success    bool
	Tunneled   bool
	TunnelType string
}

// Func probes one host over the given protocol. Implementations may block
// for a while; each caller runs the probe on its own goroutine and passes a
// context which is cancelled when the owning scan stops.
type Func func(ctx context.Context, host, protocol string) Outcome

// TunnelTypeFor maps a protocol to its tunnel classification label.
func TunnelTypeFor(protocol string) string {
	switch protocol {
	case "https":
		return "tls-tunnel"
	case "http":
		return "http-connect"
	case "socks5":
		return "socks-relay"
	case "ssh":
		return "port-forward"
	default:
		return "generic"
	}
}

// Simulated is the placeholder prober: a random delay per host followed by
// a random outcome. Ratios are probabilities in [0,1].
type Simulated struct {
	MinDelay     time.Duration
	MaxDelay     time.Duration
	SuccessRatio float64
	TunnelRatio  float64
}

func (s Simulated) Probe(ctx context.Context, host, protocol string) Outcome {
	delay := s.MinDelay
	if s.MaxDelay > s.MinDelay {
		delay += rand.N(s.MaxDelay - s.MinDelay)
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}
		case <-t.C:
		}
	}

	if rand.Float64() >= s.SuccessRatio {
		return Outcome{}
	}
	out := Outcome{Success: true}
	if rand.Float64() < s.TunnelRatio {
		out.Tunneled = true
		out.TunnelType = TunnelTypeFor(protocol)
	}
	return out
}
