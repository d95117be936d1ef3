package stream

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultHeartbeatTimeout     = 45 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultTokenYield           = 5 * time.Millisecond
)

type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api/v1.
	BaseURL string
	TaskID  string

	IncludeThinking  bool
	IncludeToolCalls bool
	// AfterSequence seeds the resume cursor for the first connect.
	AfterSequence int64

	HeartbeatTimeout     time.Duration
	MaxReconnectAttempts int
	Backoff              Backoff
	// TokenYield pauses the reader after each thinking_token so consumers
	// can render incrementally. Zero uses the default; negative disables it.
	TokenYield time.Duration

	HTTPClient *http.Client
	Metrics    *Metrics
}

func (o Options) withDefaults() Options {
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	o.Backoff = o.Backoff.withDefaults()
	if o.TokenYield == 0 {
		o.TokenYield = DefaultTokenYield
	}
	if o.HTTPClient == nil {
		// No client timeout: the stream is long lived and the heartbeat
		// watchdog bounds it instead.
		o.HTTPClient = &http.Client{}
	}
	return o
}

// StreamURL builds the stream endpoint for the task with the given resume
// cursor.
func (o Options) StreamURL(after int64) (string, error) {
	if strings.TrimSpace(o.BaseURL) == "" {
		return "", errors.Wrap(ErrInvalidRequest, "missing base url")
	}
	if strings.TrimSpace(o.TaskID) == "" {
		return "", errors.Wrap(ErrInvalidRequest, "missing task id")
	}
	u, err := url.Parse(strings.TrimRight(o.BaseURL, "/"))
	if err != nil {
		return "", errors.Wrapf(ErrInvalidRequest, "parse base url: %v", err)
	}
	u = u.JoinPath("tasks", o.TaskID, "stream")
	q := u.Query()
	q.Set("include_thinking", strconv.FormatBool(o.IncludeThinking))
	q.Set("include_tool_calls", strconv.FormatBool(o.IncludeToolCalls))
	q.Set("after_sequence", strconv.FormatInt(after, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
