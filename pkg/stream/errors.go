package stream

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingCredential means the credential store had no token. Retrying
	// cannot fix it, so the client goes straight to failed.
	ErrMissingCredential = errors.New("stream: missing bearer credential")
	// ErrMaxRetriesReached is reported once reconnect attempts are exhausted.
	ErrMaxRetriesReached = errors.New("stream: max reconnect attempts reached")
	// ErrHeartbeatTimeout cancels an epoch that went quiet for longer than the
	// heartbeat timeout. It is retried like a transport error.
	ErrHeartbeatTimeout = errors.New("stream: heartbeat timeout")
	// ErrInvalidRequest covers requests that could not even be built.
	ErrInvalidRequest = errors.New("stream: invalid request")

	errAborted     = errors.New("stream: aborted")
	errStreamEnded = errors.New("stream: ended")
)

// OpenError is returned when the stream endpoint answers with a non-2xx
// status. The resource is gone or the credential was rejected; it is not
// retried.
type OpenError struct {
	TaskID     string
	StatusCode int
	Status     string
	Body       string
}

func (e *OpenError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream: open task=%q: %s", e.TaskID, e.Status)
	}
	return fmt.Sprintf("stream: open task=%q: %s: %s", e.TaskID, e.Status, e.Body)
}

// IsUnauthorized reports whether the server rejected the credential.
func (e *OpenError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsRetryable reports whether err is a transient failure the reconnect policy
// should handle.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var openErr *OpenError
	switch {
	case errors.As(err, &openErr):
		return false
	case errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrMaxRetriesReached),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, errAborted):
		return false
	}
	return true
}
