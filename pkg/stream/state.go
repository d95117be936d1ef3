package stream

import "time"

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// Status is a point-in-time copy of the client's observable fields.
type Status struct {
	TaskID               string
	State                ConnectionState
	ReconnectAttempts    int
	MaxReconnectAttempts int
	LastHeartbeat        time.Time
	LastSequence         int64
	Err                  error

	version uint64
}

func (s Status) IsConnected() bool    { return s.State == StateConnected }
func (s Status) IsReconnecting() bool { return s.State == StateReconnecting }
func (s Status) IsFailed() bool       { return s.State == StateFailed }

// IsActive reports whether a connection is open or being (re)established.
func (s Status) IsActive() bool {
	switch s.State {
	case StateConnecting, StateConnected, StateReconnecting:
		return true
	}
	return false
}
