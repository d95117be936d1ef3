package tui

import (
	"time"

	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
)

// StreamEvent carries one parsed event across the bus. Data is the event's
// full field bag; the typed view is rebuilt on the consuming side.
type StreamEvent struct {
	TaskID     string             `json:"task_id"`
	Generation uint64             `json:"generation"`
	At         time.Time          `json:"at"`
	Type       protocol.EventType `json:"type"`
	Data       map[string]any     `json:"data,omitempty"`
}

func (e StreamEvent) Event() protocol.Event {
	return protocol.EventFromFields(e.Type, e.Data)
}

type Connection struct {
	TaskID               string                 `json:"task_id"`
	At                   time.Time              `json:"at"`
	State                stream.ConnectionState `json:"state"`
	ReconnectAttempts    int                    `json:"reconnect_attempts"`
	MaxReconnectAttempts int                    `json:"max_reconnect_attempts"`
	LastHeartbeat        time.Time              `json:"last_heartbeat,omitempty"`
	LastSequence         int64                  `json:"last_sequence,omitempty"`
	Error                string                 `json:"error,omitempty"`
}

func ConnectionFromStatus(st stream.Status) Connection {
	c := Connection{
		TaskID:               st.TaskID,
		At:                   time.Now(),
		State:                st.State,
		ReconnectAttempts:    st.ReconnectAttempts,
		MaxReconnectAttempts: st.MaxReconnectAttempts,
		LastHeartbeat:        st.LastHeartbeat,
		LastSequence:         st.LastSequence,
	}
	if st.Err != nil {
		c.Error = st.Err.Error()
	}
	return c
}

type Reconnect struct {
	At      time.Time     `json:"at"`
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay"`
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Notice is a line for the connection notices pane.
type Notice struct {
	At     time.Time `json:"at"`
	Source string    `json:"source,omitempty"`
	Level  LogLevel  `json:"level,omitempty"`
	Text   string    `json:"text"`
}

type StoreChanged struct {
	Rev uint64 `json:"rev"`
}
