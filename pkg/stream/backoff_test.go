package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func delaySequence(b Backoff, n int) []time.Duration {
	eb := b.NewExponential()
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, eb.NextBackOff())
	}
	return out
}

func TestBackoff_GrowsExponentiallyToCap(t *testing.T) {
	b := DefaultBackoff()
	b.NoJitter = true
	require.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, delaySequence(b, 7))
}

func TestBackoff_ResetRestartsSequence(t *testing.T) {
	eb := Backoff{InitialDelay: time.Second, MaxDelay: time.Minute, NoJitter: true}.NewExponential()
	eb.NextBackOff()
	eb.NextBackOff()
	eb.Reset()
	require.Equal(t, time.Second, eb.NextBackOff())
}

func TestBackoff_DelayStaysWithinJitterBounds(t *testing.T) {
	b := DefaultBackoff()
	exact := b
	exact.NoJitter = true
	capped := delaySequence(exact, DefaultMaxReconnectAttempts+2)

	for round := 0; round < 20; round++ {
		for i, d := range delaySequence(b, len(capped)) {
			lo := time.Duration(float64(capped[i]) * (1 - b.JitterFactor))
			hi := time.Duration(float64(capped[i])*(1+b.JitterFactor)) + 1
			require.GreaterOrEqual(t, d, lo, "attempt %d", i+1)
			require.LessOrEqual(t, d, hi, "attempt %d", i+1)
		}
	}
}

func TestBackoff_ZeroValueJittersByDefault(t *testing.T) {
	b := Backoff{}.withDefaults()
	require.Equal(t, DefaultJitterFactor, b.JitterFactor)

	c := New(Options{BaseURL: "http://localhost", TaskID: "t"}, nil, Handlers{})
	require.Equal(t, DefaultJitterFactor, c.opts.Backoff.JitterFactor)

	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		seen[Backoff{}.NewExponential().NextBackOff()] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestBackoff_WithDefaultsFillsZeroValues(t *testing.T) {
	b := Backoff{JitterFactor: 2}.withDefaults()
	require.Equal(t, time.Second, b.InitialDelay)
	require.Equal(t, 30*time.Second, b.MaxDelay)
	require.Equal(t, 1.0, b.JitterFactor)

	b = Backoff{JitterFactor: 0.5, NoJitter: true}.withDefaults()
	require.Equal(t, 0.0, b.JitterFactor)
}

func TestOptions_StreamURL(t *testing.T) {
	o := Options{BaseURL: "http://localhost:8000/api/v1/", TaskID: "t 1", IncludeThinking: true}
	u, err := o.StreamURL(42)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api/v1/tasks/t%201/stream?after_sequence=42&include_thinking=true&include_tool_calls=false", u)

	_, err = Options{BaseURL: "http://x"}.StreamURL(0)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(ErrHeartbeatTimeout))
	require.False(t, IsRetryable(ErrMissingCredential))
	require.False(t, IsRetryable(&OpenError{StatusCode: 401}))
	require.False(t, IsRetryable(nil))
}
