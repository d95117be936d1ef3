package audit

import (
	"time"

	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
)

type LogType string

const (
	LogThinking LogType = "thinking"
	LogTool     LogType = "tool"
	LogPhase    LogType = "phase"
	LogFinding  LogType = "finding"
	LogDispatch LogType = "dispatch"
	LogInfo     LogType = "info"
	LogError    LogType = "error"
	LogUser     LogType = "user"
	LogProgress LogType = "progress"
)

type ToolStatus string

const (
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

type ToolInfo struct {
	Name       string     `json:"name"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Status     ToolStatus `json:"status"`
}

// LogItem is one line of the task's activity log.
type LogItem struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Type        LogType   `json:"type"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Tool        *ToolInfo `json:"tool,omitempty"`
	ProgressKey string    `json:"progress_key,omitempty"`
	AgentName   string    `json:"agent_name,omitempty"`
	Expanded    bool      `json:"expanded,omitempty"`
}

const (
	thinkingOpenTitle = "Thinking..."
	thinkingDoneTitle = "Thinking"
)

// ThinkingOpen reports whether l is a thinking block still receiving tokens.
func (l LogItem) ThinkingOpen() bool {
	return l.Type == LogThinking && l.Title == thinkingOpenTitle
}

type AgentTask struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id,omitempty"`
	Name          string     `json:"name,omitempty"`
	Status        string     `json:"status"`
	TotalFiles    int        `json:"total_files,omitempty"`
	IndexedFiles  int        `json:"indexed_files,omitempty"`
	AnalyzedFiles int        `json:"analyzed_files,omitempty"`
	FindingsCount int        `json:"findings_count,omitempty"`
	Progress      float64    `json:"progress_percentage,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

type AgentNode struct {
	ID             string `json:"id"`
	AgentID        string `json:"agent_id"`
	AgentName      string `json:"agent_name"`
	AgentType      string `json:"agent_type,omitempty"`
	ParentAgentID  string `json:"parent_agent_id,omitempty"`
	Depth          int    `json:"depth,omitempty"`
	Status         string `json:"status,omitempty"`
	FindingsCount  int    `json:"findings_count,omitempty"`
	IterationCount int    `json:"iteration_count,omitempty"`
}

type AgentTree struct {
	TaskID          string      `json:"task_id"`
	Nodes           []AgentNode `json:"nodes"`
	RootAgentID     string      `json:"root_agent_id,omitempty"`
	TotalAgents     int         `json:"total_agents"`
	RunningAgents   int         `json:"running_agents"`
	CompletedAgents int         `json:"completed_agents"`
	FailedAgents    int         `json:"failed_agents"`
	TotalFindings   int         `json:"total_findings"`
}

// TreeNode is an AgentNode with its children resolved.
type TreeNode struct {
	AgentNode
	Children []*TreeNode
}

type scopeKind int

const (
	scopeDefault scopeKind = iota
	scopeAll
	scopeAgent
)

// LogScope decides which logs FilteredLogs returns. A scope either shows all
// logs, follows one agent, or is the default (no agent selected, show-all
// off), so a selected agent and show-all can never be set together.
type LogScope struct {
	kind    scopeKind
	agentID string
}

func ScopeAll() LogScope            { return LogScope{kind: scopeAll} }
func ScopeAgent(id string) LogScope { return LogScope{kind: scopeAgent, agentID: id} }
func (s LogScope) ShowAll() bool    { return s.kind == scopeAll }
func (s LogScope) AgentID() string  { return s.agentID }
func (s LogScope) HasAgent() bool   { return s.kind == scopeAgent }
func (s LogScope) Unfiltered() bool { return s.kind != scopeAgent }

// State is the aggregate folded from actions. Values returned by the store
// share slices with it and must be treated as read-only.
type State struct {
	Task             *AgentTask
	Findings         []protocol.Finding
	AgentTree        *AgentTree
	Logs             []LogItem
	Scope            LogScope
	ConnectionStatus stream.ConnectionState
	AutoScroll       bool

	rev     uint64
	logsRev uint64
	treeRev uint64
}

func InitialState() State {
	return State{
		ConnectionStatus: stream.StateDisconnected,
		AutoScroll:       true,
	}
}

// SelectedAgentID is empty unless a single agent's logs are shown.
func (s State) SelectedAgentID() string { return s.Scope.AgentID() }

func (s State) ShowAllLogs() bool { return s.Scope.ShowAll() }

func (s State) Revision() uint64 { return s.rev }
