package audit

import (
	"github.com/go-go-golems/auditctl/pkg/protocol"
)

// Reduce returns the state after applying a. It never mutates s: any slice
// it changes is copied first. Unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	next, changed := reduce(s, a)
	if !changed {
		return s
	}
	next.rev = s.rev + 1
	return next
}

func reduce(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case SetTask:
		s.Task = cloneTask(a.Task)
		return s, true

	case SetFindings:
		s.Findings = dedupeFindings(a.Findings)
		return s, true

	case AddFinding:
		if a.Finding.ID != "" && hasFinding(s.Findings, a.Finding.ID) {
			return s, false
		}
		s.Findings = append(cloneSlice(s.Findings), a.Finding)
		return s, true

	case SetAgentTree:
		if a.Tree == nil {
			s.AgentTree = nil
		} else {
			t := *a.Tree
			t.Nodes = cloneSlice(a.Tree.Nodes)
			s.AgentTree = &t
		}
		s.treeRev++
		return s, true

	case AddLog:
		s.Logs = append(cloneSlice(s.Logs), a.Item)
		s.logsRev++
		return s, true

	case UpdateLog:
		i := logIndex(s.Logs, a.ID)
		if i < 0 {
			return s, false
		}
		logs := cloneSlice(s.Logs)
		applyPatch(&logs[i], a.Patch)
		s.Logs = logs
		s.logsRev++
		return s, true

	case RemoveLog:
		i := logIndex(s.Logs, a.ID)
		if i < 0 {
			return s, false
		}
		logs := make([]LogItem, 0, len(s.Logs)-1)
		logs = append(logs, s.Logs[:i]...)
		logs = append(logs, s.Logs[i+1:]...)
		s.Logs = logs
		s.logsRev++
		return s, true

	case CompleteToolLog:
		return completeTool(s, a), true

	case UpdateOrAddProgressLog:
		logs := cloneSlice(s.Logs)
		i := progressIndex(logs, a.ProgressKey)
		if i >= 0 {
			logs[i].Title = a.Title
			logs[i].Time = a.Time
			if a.AgentName != "" {
				logs[i].AgentName = a.AgentName
			}
		} else {
			logs = append(logs, LogItem{
				ID:          a.ID,
				Time:        a.Time,
				Type:        LogProgress,
				Title:       a.Title,
				ProgressKey: a.ProgressKey,
				AgentName:   a.AgentName,
			})
		}
		s.Logs = logs
		s.logsRev++
		return s, true

	case SelectAgent:
		switch {
		case a.AgentID != "":
			s.Scope = ScopeAgent(a.AgentID)
		case s.Scope.HasAgent():
			s.Scope = LogScope{}
		default:
			return s, false
		}
		return s, true

	case ToggleShowAllLogs:
		if s.Scope.ShowAll() {
			s.Scope = LogScope{}
		} else {
			s.Scope = ScopeAll()
		}
		return s, true

	case SetShowAllLogs:
		switch {
		case a.Show && !s.Scope.ShowAll():
			s.Scope = ScopeAll()
		case !a.Show && s.Scope.ShowAll():
			s.Scope = LogScope{}
		default:
			return s, false
		}
		return s, true

	case SetConnectionStatus:
		if s.ConnectionStatus == a.Status {
			return s, false
		}
		s.ConnectionStatus = a.Status
		return s, true

	case ToggleLogExpanded:
		i := logIndex(s.Logs, a.ID)
		if i < 0 {
			return s, false
		}
		logs := cloneSlice(s.Logs)
		logs[i].Expanded = !logs[i].Expanded
		s.Logs = logs
		s.logsRev++
		return s, true

	case SetAutoScroll:
		if s.AutoScroll == a.Enabled {
			return s, false
		}
		s.AutoScroll = a.Enabled
		return s, true

	case MarkTaskStatus:
		var t AgentTask
		if s.Task != nil {
			t = *s.Task
		} else {
			t.ID = a.TaskID
		}
		t.Status = a.Status
		if a.ErrorMessage != "" {
			t.ErrorMessage = a.ErrorMessage
		}
		if isTerminalStatus(a.Status) && t.CompletedAt == nil && !a.At.IsZero() {
			at := a.At
			t.CompletedAt = &at
		}
		s.Task = &t
		return s, true

	case Reset:
		next := InitialState()
		next.ConnectionStatus = s.ConnectionStatus
		next.logsRev = s.logsRev + 1
		next.treeRev = s.treeRev + 1
		return next, true
	}
	return s, false
}

func completeTool(s State, a CompleteToolLog) State {
	status := ToolCompleted
	if a.Failed {
		status = ToolFailed
	}
	logs := cloneSlice(s.Logs)
	for i := len(logs) - 1; i >= 0; i-- {
		l := &logs[i]
		if l.Type != LogTool || l.Tool == nil || l.Tool.Name != a.ToolName || l.Tool.Status != ToolRunning {
			continue
		}
		tool := *l.Tool
		tool.Status = status
		tool.DurationMs = a.DurationMs
		l.Tool = &tool
		if a.Output != "" {
			l.Content = a.Output
		}
		s.Logs = logs
		s.logsRev++
		return s
	}

	s.Logs = append(logs, LogItem{
		ID:        a.ID,
		Time:      a.Time,
		Type:      LogTool,
		Title:     a.ToolName,
		Content:   a.Output,
		AgentName: a.AgentName,
		Tool:      &ToolInfo{Name: a.ToolName, DurationMs: a.DurationMs, Status: status},
	})
	s.logsRev++
	return s
}

func applyPatch(l *LogItem, p LogPatch) {
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Content != nil {
		l.Content = *p.Content
	}
	if p.Tool != nil {
		tool := *p.Tool
		l.Tool = &tool
	}
	if p.AgentName != nil {
		l.AgentName = *p.AgentName
	}
}

func logIndex(logs []LogItem, id string) int {
	if id == "" {
		return -1
	}
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].ID == id {
			return i
		}
	}
	return -1
}

func progressIndex(logs []LogItem, key string) int {
	for i := range logs {
		if logs[i].Type == LogProgress && logs[i].ProgressKey == key {
			return i
		}
	}
	return -1
}

func hasFinding(findings []protocol.Finding, id string) bool {
	for _, f := range findings {
		if f.ID == id {
			return true
		}
	}
	return false
}

func dedupeFindings(in []protocol.Finding) []protocol.Finding {
	out := make([]protocol.Finding, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, f := range in {
		if f.ID != "" {
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
		}
		out = append(out, f)
	}
	return out
}

func cloneTask(t *AgentTask) *AgentTask {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in), len(in)+1)
	copy(out, in)
	return out
}

func isTerminalStatus(status string) bool {
	switch status {
	case protocol.TaskStatusCompleted, protocol.TaskStatusFailed, protocol.TaskStatusCancelled:
		return true
	}
	return false
}

func isActiveStatus(status string) bool {
	return status == protocol.TaskStatusRunning || status == protocol.TaskStatusPending
}
