package stream

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-go-golems/auditctl/pkg/credentials"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const readBufferSize = 32 * 1024

// Client keeps one task's event stream open, resuming after the last
// processed sequence and reconnecting with backoff on transient failures.
//
// All transitions and callbacks are fenced by an epoch that Connect and
// Disconnect advance, so nothing from a torn-down connection reaches the
// handlers once Disconnect has returned. Disconnect waits for an event hook
// that is already running, so hooks dispatched from Handlers must not call
// back into the client.
//
// Only Connect passes through StateConnecting. A scheduled retry opens the
// next attempt while still in StateReconnecting, so ReconnectAttempts stays
// visible until the stream is connected again or the client gives up.
type Client struct {
	opts  Options
	creds credentials.Store
	h     Handlers

	mu             sync.Mutex
	epoch          uint64
	status         Status
	cancel         context.CancelCauseFunc
	reconnectTimer *time.Timer
	// delays restarts whenever ReconnectAttempts goes back to zero.
	delays *backoff.ExponentialBackOff

	emitMu  sync.Mutex
	emitted uint64

	// dispatchMu is held shared while an event is checked against the epoch
	// and dispatched; Disconnect takes it exclusively to drain that window.
	dispatchMu sync.RWMutex
}

func New(opts Options, creds credentials.Store, h Handlers) *Client {
	opts = opts.withDefaults()
	c := &Client{
		opts:   opts,
		creds:  creds,
		h:      h,
		delays: opts.Backoff.NewExponential(),
	}
	c.status = Status{
		TaskID:               opts.TaskID,
		State:                StateDisconnected,
		MaxReconnectAttempts: opts.MaxReconnectAttempts,
		LastSequence:         opts.AfterSequence,
	}
	opts.Metrics.setState(StateDisconnected)
	return c
}

// Status returns a snapshot of the connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect opens the stream. It is a no-op while a connection is open or being
// (re)established and clears a previous failed state. A missing credential
// fails immediately without retrying.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.status.IsActive() {
		c.mu.Unlock()
		return
	}
	c.epoch++
	epoch := c.epoch
	c.status.ReconnectAttempts = 0
	c.delays.Reset()

	token, ok := c.token()
	if !ok {
		st := c.setLocked(StateFailed, ErrMissingCredential)
		c.mu.Unlock()
		log.Error().Str("task", c.opts.TaskID).Msg("no bearer credential, not connecting")
		c.emit(st)
		return
	}

	st := c.setLocked(StateConnecting, nil)
	ctx, cancel := c.beginAttemptLocked()
	c.mu.Unlock()
	c.emit(st)

	go c.run(ctx, cancel, epoch, token)
}

// Disconnect tears down the current connection and any pending reconnect and
// forces the disconnected state. It is safe to call in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.epoch++
	st, changed := c.teardownLocked()
	c.mu.Unlock()
	if changed {
		c.emit(st)
	}
	c.dispatchMu.Lock()
	c.dispatchMu.Unlock() //nolint:staticcheck // waits out an in-flight dispatch
}

// ResetConnection disconnects, forgets the resume cursor and connects again,
// replaying the stream from its beginning.
func (c *Client) ResetConnection() {
	c.Disconnect()
	c.mu.Lock()
	c.status.LastSequence = 0
	c.mu.Unlock()
	c.Connect()
}

func (c *Client) token() (string, bool) {
	if c.creds == nil {
		return "", false
	}
	token, ok := c.creds.Get()
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func (c *Client) beginAttemptLocked() (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(context.Background())
	c.cancel = cancel
	return ctx, cancel
}

func (c *Client) teardownLocked() (Status, bool) {
	if c.cancel != nil {
		c.cancel(errAborted)
		c.cancel = nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	changed := c.status.State != StateDisconnected || c.status.ReconnectAttempts != 0 || c.status.Err != nil
	c.status.ReconnectAttempts = 0
	c.delays.Reset()
	if !changed {
		return c.status, false
	}
	return c.setLocked(StateDisconnected, nil), true
}

func (c *Client) setLocked(state ConnectionState, err error) Status {
	if c.status.State != state {
		log.Debug().Str("task", c.opts.TaskID).
			Str("from", string(c.status.State)).
			Str("to", string(state)).
			Msg("stream state")
	}
	c.status.State = state
	c.status.Err = err
	c.status.version++
	return c.status
}

// update applies fn to the status if epoch is still current.
func (c *Client) update(epoch uint64, fn func(*Status)) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	fn(&c.status)
	c.status.version++
	st := c.status
	c.mu.Unlock()
	c.emit(st)
	return true
}

func (c *Client) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

func (c *Client) emit(st Status) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if st.version <= c.emitted {
		return
	}
	c.emitted = st.version
	c.opts.Metrics.setState(st.State)
	if c.h.OnStateChange != nil {
		c.h.OnStateChange(st)
	}
}

func (c *Client) run(ctx context.Context, cancel context.CancelCauseFunc, epoch uint64, token string) {
	defer cancel(context.Canceled)
	err := c.stream(ctx, cancel, epoch, token)
	c.finish(epoch, err)
}

func (c *Client) stream(ctx context.Context, cancel context.CancelCauseFunc, epoch uint64, token string) error {
	c.mu.Lock()
	after := c.status.LastSequence
	c.mu.Unlock()

	u, err := c.opts.StreamURL(after)
	if err != nil {
		return err
	}

	timeout := c.opts.HeartbeatTimeout
	watchdog := time.AfterFunc(timeout, func() { cancel(ErrHeartbeatTimeout) })
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(ErrInvalidRequest, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	log.Debug().Str("task", c.opts.TaskID).Int64("after_sequence", after).Msg("opening stream")
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return cause(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &OpenError{
			TaskID:     c.opts.TaskID,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if !c.update(epoch, func(s *Status) {
		s.State = StateConnected
		s.ReconnectAttempts = 0
		s.Err = nil
		c.delays.Reset()
	}) {
		return errAborted
	}
	log.Info().Str("task", c.opts.TaskID).Int64("after_sequence", after).Msg("stream connected")
	watchdog.Reset(timeout)

	parser := protocol.NewFrameParser()
	buf := make([]byte, readBufferSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				watchdog.Reset(timeout)
				terminal, err := c.handle(ctx, epoch, after, ev)
				if err != nil {
					return err
				}
				if terminal {
					return errStreamEnded
				}
			}
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if errors.Is(rerr, io.EOF) {
				return errStreamEnded
			}
			return errors.Wrap(rerr, "read stream")
		}
	}
}

// handle dispatches one event. Events at or below the cursor this connection
// resumed from are replays and are dropped.
func (c *Client) handle(ctx context.Context, epoch uint64, after int64, ev protocol.Event) (bool, error) {
	if ev.Sequence > 0 && ev.Sequence <= after {
		c.opts.Metrics.observeDuplicate()
		return false, nil
	}
	terminal, ok := c.dispatch(epoch, ev)
	if !ok {
		return false, errAborted
	}

	if ev.Sequence > 0 {
		c.mu.Lock()
		if c.epoch == epoch && ev.Sequence > c.status.LastSequence {
			c.status.LastSequence = ev.Sequence
		}
		c.mu.Unlock()
	}

	if ev.Type == protocol.EventThinkingToken && c.opts.TokenYield > 0 {
		t := time.NewTimer(c.opts.TokenYield)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false, context.Cause(ctx)
		case <-t.C:
		}
	}
	return terminal, nil
}

// dispatch hands ev to the handlers unless epoch has been torn down.
func (c *Client) dispatch(epoch uint64, ev protocol.Event) (terminal bool, ok bool) {
	c.dispatchMu.RLock()
	defer c.dispatchMu.RUnlock()
	if ev.Type == protocol.EventHeartbeat {
		if !c.update(epoch, func(s *Status) { s.LastHeartbeat = time.Now() }) {
			return false, false
		}
	} else if !c.current(epoch) {
		return false, false
	}
	c.opts.Metrics.observeEvent(ev.Type)
	return c.h.Dispatch(ev), true
}

func cause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return err
}

func (c *Client) finish(epoch uint64, err error) {
	switch {
	case errors.Is(err, errAborted):
	case errors.Is(err, errStreamEnded):
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return
		}
		c.epoch++
		c.cancel = nil
		st, changed := c.teardownLocked()
		c.mu.Unlock()
		log.Info().Str("task", c.opts.TaskID).Msg("stream ended")
		if changed {
			c.emit(st)
		}
	case !IsRetryable(err):
		c.fail(epoch, err)
	default:
		if errors.Is(err, ErrHeartbeatTimeout) {
			c.opts.Metrics.observeHeartbeatTimeout()
		}
		c.scheduleReconnect(epoch, err)
	}
}

func (c *Client) fail(epoch uint64, err error) {
	ok := c.update(epoch, func(s *Status) {
		s.State = StateFailed
		s.Err = err
	})
	if ok {
		log.Error().Err(err).Str("task", c.opts.TaskID).Msg("stream failed")
	}
}

func (c *Client) scheduleReconnect(epoch uint64, reason error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	attempt := c.status.ReconnectAttempts + 1
	if attempt > c.opts.MaxReconnectAttempts {
		err := errors.Wrapf(ErrMaxRetriesReached, "%d attempts, last error: %v", c.opts.MaxReconnectAttempts, reason)
		st := c.setLocked(StateFailed, err)
		c.mu.Unlock()
		log.Error().Err(err).Str("task", c.opts.TaskID).Msg("giving up on stream")
		c.emit(st)
		if c.h.OnMaxRetriesReached != nil && c.current(epoch) {
			c.h.OnMaxRetriesReached()
		}
		return
	}

	delay := c.delays.NextBackOff()
	c.status.ReconnectAttempts = attempt
	st := c.setLocked(StateReconnecting, nil)
	c.mu.Unlock()

	log.Info().Err(reason).
		Str("task", c.opts.TaskID).
		Int("attempt", attempt).
		Int("max", c.opts.MaxReconnectAttempts).
		Dur("delay", delay).
		Msg("reconnecting")
	c.opts.Metrics.observeReconnect()
	c.emit(st)
	if c.h.OnReconnect != nil && c.current(epoch) {
		c.h.OnReconnect(attempt, delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.reconnectTimer = time.AfterFunc(delay, func() { c.retry(epoch) })
}

func (c *Client) retry(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.status.State != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil

	token, ok := c.token()
	if !ok {
		st := c.setLocked(StateFailed, ErrMissingCredential)
		c.mu.Unlock()
		c.emit(st)
		return
	}
	ctx, cancel := c.beginAttemptLocked()
	c.mu.Unlock()

	c.run(ctx, cancel, epoch, token)
}
