package stream

import (
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const DefaultJitterFactor = 0.3

// Backoff configures reconnect delays: exponential growth from InitialDelay,
// capped at MaxDelay, then spread uniformly by ±JitterFactor of the capped
// value. A zero JitterFactor means DefaultJitterFactor; set NoJitter for
// exact delays.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	NoJitter     bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: DefaultJitterFactor,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.InitialDelay <= 0 {
		b.InitialDelay = d.InitialDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = d.MaxDelay
	}
	if b.MaxDelay < b.InitialDelay {
		b.MaxDelay = b.InitialDelay
	}
	switch {
	case b.NoJitter:
		b.JitterFactor = 0
	case b.JitterFactor <= 0:
		b.JitterFactor = d.JitterFactor
	case b.JitterFactor > 1:
		b.JitterFactor = 1
	}
	return b
}

// NewExponential returns a fresh delay sequence. The n-th NextBackOff after a
// Reset is min(InitialDelay*2^(n-1), MaxDelay) jittered by ±JitterFactor. It
// never returns backoff.Stop; the attempt cap is enforced by the client.
func (b Backoff) NewExponential() *backoff.ExponentialBackOff {
	b = b.withDefaults()
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.InitialDelay
	eb.MaxInterval = b.MaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = b.JitterFactor
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}
