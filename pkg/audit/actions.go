package audit

import (
	"time"

	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
)

// Action is one discrete state transition. Reduce is the only code that
// interprets actions.
type Action interface {
	ActionName() string
}

type SetTask struct{ Task *AgentTask }

type SetFindings struct{ Findings []protocol.Finding }

// AddFinding appends a finding unless one with the same ID is present.
type AddFinding struct{ Finding protocol.Finding }

type SetAgentTree struct{ Tree *AgentTree }

// AddLog appends Item. The store assigns ID and Time when they are zero.
type AddLog struct{ Item LogItem }

// LogPatch holds the fields UpdateLog overwrites; nil fields are kept.
type LogPatch struct {
	Type      *LogType
	Title     *string
	Content   *string
	Tool      *ToolInfo
	AgentName *string
}

type UpdateLog struct {
	ID    string
	Patch LogPatch
}

type RemoveLog struct{ ID string }

// CompleteToolLog completes the most recent running log of ToolName. When no
// such log exists a completed entry is appended with ID and Time, which the
// store fills in.
type CompleteToolLog struct {
	ToolName   string
	Output     string
	DurationMs int64
	Failed     bool
	AgentName  string

	ID   string
	Time time.Time
}

// UpdateOrAddProgressLog upserts the progress line keyed by ProgressKey.
type UpdateOrAddProgressLog struct {
	ProgressKey string
	Title       string
	AgentName   string

	ID   string
	Time time.Time
}

// SelectAgent follows one agent's logs; an empty AgentID clears the
// selection.
type SelectAgent struct{ AgentID string }

type ToggleShowAllLogs struct{}

type SetShowAllLogs struct{ Show bool }

type SetConnectionStatus struct{ Status stream.ConnectionState }

type ToggleLogExpanded struct{ ID string }

type SetAutoScroll struct{ Enabled bool }

// MarkTaskStatus moves the task to Status, creating a minimal task record
// when none was set.
type MarkTaskStatus struct {
	TaskID       string
	Status       string
	ErrorMessage string
	At           time.Time
}

type Reset struct{}

func (SetTask) ActionName() string                { return "SET_TASK" }
func (SetFindings) ActionName() string            { return "SET_FINDINGS" }
func (AddFinding) ActionName() string             { return "ADD_FINDING" }
func (SetAgentTree) ActionName() string           { return "SET_AGENT_TREE" }
func (AddLog) ActionName() string                 { return "ADD_LOG" }
func (UpdateLog) ActionName() string              { return "UPDATE_LOG" }
func (RemoveLog) ActionName() string              { return "REMOVE_LOG" }
func (CompleteToolLog) ActionName() string        { return "COMPLETE_TOOL_LOG" }
func (UpdateOrAddProgressLog) ActionName() string { return "UPDATE_OR_ADD_PROGRESS_LOG" }
func (SelectAgent) ActionName() string            { return "SELECT_AGENT" }
func (ToggleShowAllLogs) ActionName() string      { return "TOGGLE_SHOW_ALL_LOGS" }
func (SetShowAllLogs) ActionName() string         { return "SET_SHOW_ALL_LOGS" }
func (SetConnectionStatus) ActionName() string    { return "SET_CONNECTION_STATUS" }
func (ToggleLogExpanded) ActionName() string      { return "TOGGLE_LOG_EXPANDED" }
func (SetAutoScroll) ActionName() string          { return "SET_AUTO_SCROLL" }
func (MarkTaskStatus) ActionName() string         { return "MARK_TASK_STATUS" }
func (Reset) ActionName() string                  { return "RESET" }
