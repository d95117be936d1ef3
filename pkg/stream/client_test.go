package stream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-go-golems/auditctl/pkg/credentials"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu         sync.Mutex
	events     []protocol.Event
	completed  int
	errored    int
	reconnects []int
	maxRetries int
	states     []ConnectionState
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnEvent: func(ev protocol.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		},
		OnComplete: func(protocol.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed++
		},
		OnError: func(protocol.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errored++
		},
		OnReconnect: func(attempt int, _ time.Duration) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.reconnects = append(r.reconnects, attempt)
		},
		OnMaxRetriesReached: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.maxRetries++
		},
		OnStateChange: func(s Status) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s.State)
		},
	}
}

func (r *recorder) types() []protocol.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) sequences() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, ev := range r.events {
		if ev.Sequence > 0 {
			out = append(out, ev.Sequence)
		}
	}
	return out
}

func writeFrame(w http.ResponseWriter, event string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.(http.Flusher).Flush()
}

func openStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()
}

// dropConnection closes the connection before any response is written.
func dropConnection(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

func testOptions(url string) Options {
	return Options{
		BaseURL:              url,
		TaskID:               "task-1",
		IncludeThinking:      true,
		IncludeToolCalls:     true,
		HeartbeatTimeout:     5 * time.Second,
		MaxReconnectAttempts: 3,
		Backoff:              Backoff{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		TokenYield:           -1,
	}
}

func waitForState(t *testing.T, c *Client, state ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().State == state
	}, 3*time.Second, 5*time.Millisecond, "state never became %s (last: %s)", state, c.Status().State)
}

func TestClient_MissingCredentialFailsWithoutRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(testOptions(srv.URL), credentials.Static(""), Handlers{})
	c.Connect()

	st := c.Status()
	require.Equal(t, StateFailed, st.State)
	require.True(t, st.IsFailed())
	require.True(t, errors.Is(st.Err, ErrMissingCredential))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), hits.Load())
}

func TestClient_StreamsEventsInOrderAndStopsOnCompletion(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(r.Context())
		openStream(w)
		writeFrame(w, "thinking_start", `{"sequence":1}`)
		writeFrame(w, "thinking_token", `{"sequence":2,"accumulated":"a"}`)
		writeFrame(w, "mystery", `{"sequence":3}`)
		writeFrame(w, "task_complete", `{"sequence":4,"status":"completed"}`)
		writeFrame(w, "progress", `{"sequence":5}`)
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(testOptions(srv.URL), credentials.Static("tok"), rec.handlers())
	c.Connect()
	waitForState(t, c, StateDisconnected)

	require.Equal(t, []protocol.EventType{
		protocol.EventThinkingStart,
		protocol.EventThinkingToken,
		"mystery",
		protocol.EventTaskComplete,
	}, rec.types())
	require.Equal(t, 1, rec.completed)
	require.Equal(t, int64(4), c.Status().LastSequence)
	require.Nil(t, c.Status().Err)

	gotReq := <-reqs
	assert.Equal(t, "/tasks/task-1/stream", gotReq.URL.Path)
	assert.Equal(t, "Bearer tok", gotReq.Header.Get("Authorization"))
	assert.Equal(t, "text/event-stream", gotReq.Header.Get("Accept"))
	assert.Equal(t, "no-cache", gotReq.Header.Get("Cache-Control"))
	assert.Equal(t, "true", gotReq.URL.Query().Get("include_thinking"))
	assert.Equal(t, "true", gotReq.URL.Query().Get("include_tool_calls"))
	assert.Equal(t, "0", gotReq.URL.Query().Get("after_sequence"))

	rec.mu.Lock()
	states := append([]ConnectionState(nil), rec.states...)
	rec.mu.Unlock()
	require.Equal(t, []ConnectionState{StateConnecting, StateConnected, StateDisconnected}, states)
}

func TestClient_CancelledCompletionSkipsOnComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openStream(w)
		writeFrame(w, "task_complete", `{"status":"cancelled"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(testOptions(srv.URL), credentials.Static("tok"), rec.handlers())
	c.Connect()
	waitForState(t, c, StateDisconnected)

	require.Equal(t, []protocol.EventType{protocol.EventTaskComplete}, rec.types())
	require.Equal(t, 0, rec.completed)
	require.Empty(t, rec.reconnects)
}

func TestClient_ErrorEventEndsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openStream(w)
		writeFrame(w, "task_error", `{"error":"boom"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(testOptions(srv.URL), credentials.Static("tok"), rec.handlers())
	c.Connect()
	waitForState(t, c, StateDisconnected)
	require.Equal(t, 1, rec.errored)
}

func TestClient_Non2xxFailsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(testOptions(srv.URL), credentials.Static("tok"), rec.handlers())
	c.Connect()
	waitForState(t, c, StateFailed)

	var openErr *OpenError
	require.True(t, errors.As(c.Status().Err, &openErr))
	require.Equal(t, http.StatusNotFound, openErr.StatusCode)
	require.Equal(t, "no such task", openErr.Body)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), hits.Load())
	require.Empty(t, rec.reconnects)
}

func TestClient_MaxRetriesReached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(w)
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(testOptions(srv.URL), credentials.Static("tok"), rec.handlers())
	c.Connect()
	waitForState(t, c, StateFailed)

	st := c.Status()
	require.True(t, errors.Is(st.Err, ErrMaxRetriesReached))
	require.Equal(t, 3, st.ReconnectAttempts)
	require.Equal(t, 3, st.MaxReconnectAttempts)

	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []int{1, 2, 3}, rec.reconnects)
	require.Equal(t, 1, rec.maxRetries)
	require.Equal(t, int32(4), hits.Load())
}

func TestClient_ConnectAfterFailureRestartsCounter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 4 {
			dropConnection(w)
			return
		}
		openStream(w)
		writeFrame(w, "done", `{}`)
	}))
	defer srv.Close()

	c := New(testOptions(srv.URL), credentials.Static("tok"), Handlers{})
	c.Connect()
	waitForState(t, c, StateFailed)

	c.Connect()
	waitForState(t, c, StateDisconnected)
	require.Equal(t, 0, c.Status().ReconnectAttempts)
	require.Nil(t, c.Status().Err)
}

func TestClient_DisconnectCancelsPendingReconnect(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(w)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.Backoff = Backoff{InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second}
	rec := &recorder{}
	c := New(opts, credentials.Static("tok"), rec.handlers())
	c.Connect()
	waitForState(t, c, StateReconnecting)

	c.Disconnect()
	st := c.Status()
	require.Equal(t, StateDisconnected, st.State)
	require.Equal(t, 0, st.ReconnectAttempts)

	rec.mu.Lock()
	before := len(rec.states)
	rec.mu.Unlock()

	time.Sleep(400 * time.Millisecond)
	require.Equal(t, int32(1), hits.Load())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.states, before)
}

func TestClient_DisconnectWaitsForRunningHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openStream(w)
		for i := 1; i <= 3; i++ {
			writeFrame(w, "info", fmt.Sprintf(`{"sequence":%d,"message":"m%d"}`, i, i))
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := New(testOptions(srv.URL), credentials.Static("tok"), Handlers{
		OnEvent: func(protocol.Event) {
			if calls.Add(1) == 1 {
				close(entered)
				<-release
			}
		},
	})
	c.Connect()
	<-entered

	done := make(chan struct{})
	go func() {
		c.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Disconnect returned while a hook was still running")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	<-done

	require.Equal(t, StateDisconnected, c.Status().State)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestClient_HeartbeatTimeoutReconnects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openStream(w)
		writeFrame(w, "heartbeat", `{}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.HeartbeatTimeout = 150 * time.Millisecond
	opts.Backoff = Backoff{InitialDelay: 10 * time.Second, MaxDelay: 10 * time.Second}
	c := New(opts, credentials.Static("tok"), Handlers{})
	defer c.Disconnect()

	c.Connect()
	waitForState(t, c, StateConnected)
	require.Eventually(t, func() bool { return !c.Status().LastHeartbeat.IsZero() }, time.Second, 5*time.Millisecond)

	waitForState(t, c, StateReconnecting)
	st := c.Status()
	require.Equal(t, 1, st.ReconnectAttempts)
	require.Nil(t, st.Err)
}

func TestClient_PeriodicHeartbeatsKeepConnectionOpen(t *testing.T) {
	var stop atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openStream(w)
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-tick.C:
				if !stop.Load() {
					writeFrame(w, "heartbeat", `{}`)
				}
			}
		}
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.HeartbeatTimeout = 150 * time.Millisecond
	opts.Backoff = Backoff{InitialDelay: 10 * time.Second, MaxDelay: 10 * time.Second}
	rec := &recorder{}
	c := New(opts, credentials.Static("tok"), rec.handlers())
	defer c.Disconnect()

	c.Connect()
	waitForState(t, c, StateConnected)

	// several timeouts' worth of time with heartbeats flowing
	time.Sleep(600 * time.Millisecond)
	st := c.Status()
	require.Equal(t, StateConnected, st.State)
	require.Equal(t, 0, st.ReconnectAttempts)
	require.WithinDuration(t, time.Now(), st.LastHeartbeat, 150*time.Millisecond)

	stop.Store(true)
	waitForState(t, c, StateReconnecting)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []int{1}, rec.reconnects)
}

func TestClient_ResumesAfterLastSequence(t *testing.T) {
	var hits atomic.Int32
	var secondAfter atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			openStream(w)
			writeFrame(w, "node_start", `{"sequence":1}`)
			writeFrame(w, "node_end", `{"sequence":2}`)
			panic(http.ErrAbortHandler)
		default:
			secondAfter.Store(r.URL.Query().Get("after_sequence"))
			openStream(w)
			writeFrame(w, "node_end", `{"sequence":2}`)
			writeFrame(w, "node_start", `{"sequence":3}`)
			writeFrame(w, "done", `{}`)
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(testOptions(srv.URL), credentials.Static("tok"), rec.handlers())
	c.Connect()

	require.Eventually(t, func() bool {
		return hits.Load() == 2 && c.Status().State == StateDisconnected
	}, 3*time.Second, 5*time.Millisecond)

	require.Equal(t, "2", secondAfter.Load())
	require.Equal(t, []int64{1, 2, 3}, rec.sequences())
	require.Equal(t, []int{1}, rec.reconnects)

	// the retry reconnects straight from reconnecting
	rec.mu.Lock()
	defer rec.mu.Unlock()
	connecting := 0
	for _, st := range rec.states {
		if st == StateConnecting {
			connecting++
		}
	}
	require.Equal(t, 1, connecting)
	require.Contains(t, rec.states, StateReconnecting)
}

func TestClient_ResetConnectionReplaysFromStart(t *testing.T) {
	var afters []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		afters = append(afters, r.URL.Query().Get("after_sequence"))
		mu.Unlock()
		openStream(w)
		writeFrame(w, "node_start", `{"sequence":7}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(testOptions(srv.URL), credentials.Static("tok"), Handlers{})
	defer c.Disconnect()
	c.Connect()
	require.Eventually(t, func() bool { return c.Status().LastSequence == 7 }, 3*time.Second, 5*time.Millisecond)

	c.ResetConnection()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(afters) == 2
	}, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"0", "0"}, afters)
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		openStream(w)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(testOptions(srv.URL), credentials.Static("tok"), Handlers{})
	defer c.Disconnect()
	c.Connect()
	c.Connect()
	waitForState(t, c, StateConnected)
	c.Connect()

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(1), hits.Load())
}
