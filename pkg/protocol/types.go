package protocol

import "strings"

// EventType is the value of a frame's `event:` line.
type EventType string

const (
	EventThinkingStart EventType = "thinking_start"
	EventThinkingToken EventType = "thinking_token"
	EventThinkingEnd   EventType = "thinking_end"

	EventToolCallStart EventType = "tool_call_start"
	EventToolCallEnd   EventType = "tool_call_end"
	// Legacy aliases still emitted by older task runners.
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"

	EventNodeStart EventType = "node_start"
	EventNodeEnd   EventType = "node_end"

	EventFindingNew      EventType = "finding_new"
	EventFindingVerified EventType = "finding_verified"

	EventProgress EventType = "progress"

	EventTaskComplete EventType = "task_complete"
	EventTaskEnd      EventType = "task_end"
	EventTaskError    EventType = "task_error"
	EventError        EventType = "error"

	EventHeartbeat EventType = "heartbeat"
	EventDone      EventType = "done"

	EventInfo           EventType = "info"
	EventDispatch       EventType = "dispatch"
	EventLLMDecision    EventType = "llm_decision"
	EventLLMAction      EventType = "llm_action"
	EventLLMObservation EventType = "llm_observation"

	// EventMessage is used for frames that carry data but no event type.
	EventMessage EventType = "message"
)

// Task statuses reported by task_complete/task_end and the task API.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

var knownEventTypes = map[EventType]struct{}{
	EventThinkingStart: {}, EventThinkingToken: {}, EventThinkingEnd: {},
	EventToolCallStart: {}, EventToolCallEnd: {}, EventToolCall: {}, EventToolResult: {},
	EventNodeStart: {}, EventNodeEnd: {},
	EventFindingNew: {}, EventFindingVerified: {},
	EventProgress: {},
	EventTaskComplete: {}, EventTaskEnd: {}, EventTaskError: {}, EventError: {},
	EventHeartbeat: {}, EventDone: {},
	EventInfo: {}, EventDispatch: {},
	EventLLMDecision: {}, EventLLMAction: {}, EventLLMObservation: {},
	EventMessage: {},
}

// Known reports whether t is one of the event types above.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

func (t EventType) IsToolStart() bool {
	return t == EventToolCallStart || t == EventToolCall
}

func (t EventType) IsToolEnd() bool {
	return t == EventToolCallEnd || t == EventToolResult
}

func (t EventType) IsFinding() bool {
	return t == EventFindingNew || t == EventFindingVerified
}

func (t EventType) IsCompletion() bool {
	return t == EventTaskComplete || t == EventTaskEnd
}

func (t EventType) IsError() bool {
	return t == EventTaskError || t == EventError
}

// Event is one normalized domain event parsed from a frame.
//
// Fields holds the shallow merge of every `data:` object of the frame; the
// typed fields are decoded from the same bag for the handlers that need them.
type Event struct {
	Type      EventType      `json:"type"`
	Sequence  int64          `json:"sequence,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Message   string         `json:"message,omitempty"`
	AgentName string         `json:"agent_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Accumulated string `json:"accumulated,omitempty"`
	Token       string `json:"token,omitempty"`

	ToolName       string         `json:"tool_name,omitempty"`
	ToolInput      map[string]any `json:"tool_input,omitempty"`
	ToolOutput     any            `json:"tool_output,omitempty"`
	ToolDurationMs int64          `json:"tool_duration_ms,omitempty"`

	NodeID   string `json:"node_id,omitempty"`
	NodeName string `json:"node_name,omitempty"`
	NodeType string `json:"node_type,omitempty"`

	FindingID string   `json:"finding_id,omitempty"`
	Finding   *Finding `json:"finding,omitempty"`

	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	ProgressKey string   `json:"progress_key,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	Total       *float64 `json:"total,omitempty"`

	Fields map[string]any `json:"-"`
}

// Finding is the wire shape of a vulnerability finding.
type Finding struct {
	ID                string   `json:"id"`
	Title             string   `json:"title,omitempty"`
	Severity          string   `json:"severity,omitempty"`
	VulnerabilityType string   `json:"vulnerability_type,omitempty"`
	FilePath          string   `json:"file_path,omitempty"`
	LineStart         int      `json:"line_start,omitempty"`
	LineEnd           int      `json:"line_end,omitempty"`
	CodeSnippet       string   `json:"code_snippet,omitempty"`
	Description       string   `json:"description,omitempty"`
	Suggestion        string   `json:"suggestion,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	IsVerified        bool     `json:"is_verified,omitempty"`
	AgentName         string   `json:"agent_name,omitempty"`
}

// MetadataString returns metadata[key] when it is a non-empty string.
func (e Event) MetadataString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata[key].(string)
	return strings.TrimSpace(s)
}

// TaskStatus resolves the status carried by a completion event.
func (e Event) TaskStatus() string {
	if e.Status != "" {
		return e.Status
	}
	if s := e.MetadataString("status"); s != "" {
		return s
	}
	return TaskStatusCompleted
}

// IsSuccessfulCompletion reports whether a completion event should be
// surfaced as a completed task (cancelled and failed runs are not).
func (e Event) IsSuccessfulCompletion() bool {
	if !e.Type.IsCompletion() {
		return false
	}
	switch e.TaskStatus() {
	case TaskStatusCancelled, TaskStatusFailed:
		return false
	}
	return true
}

// ErrorMessage returns the most specific error text of an error event.
func (e Event) ErrorMessage() string {
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	return "unknown error"
}
