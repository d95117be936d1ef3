package models

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestStore() *audit.Store {
	var n atomic.Int64
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := audit.NewStore(audit.StoreOptions{
		NewID: func() string { return fmt.Sprintf("log-%d", n.Add(1)) },
		Now:   func() time.Time { return t0 },
	})
	s.Dispatch(audit.SetTask{Task: &audit.AgentTask{ID: "t1", Status: protocol.TaskStatusRunning, Progress: 40}})
	s.Dispatch(audit.SetAgentTree{Tree: &audit.AgentTree{
		TaskID:      "t1",
		RootAgentID: "root",
		Nodes: []audit.AgentNode{
			{ID: "n1", AgentID: "root", AgentName: "Orchestrator", Status: "running"},
			{ID: "n2", AgentID: "recon", AgentName: "Recon", ParentAgentID: "root", Depth: 1, Status: "running"},
		},
	}})
	s.Dispatch(audit.AddLog{Item: audit.LogItem{Type: audit.LogInfo, Title: "starting", AgentName: "Orchestrator"}})
	s.Dispatch(audit.AddLog{Item: audit.LogItem{Type: audit.LogTool, Title: "semgrep", AgentName: "Recon",
		Tool: &audit.ToolInfo{Name: "semgrep", Status: audit.ToolRunning}}})
	s.Dispatch(audit.AddFinding{Finding: protocol.Finding{ID: "f1", Title: "SQL injection", Severity: "high", FilePath: "app/db.py", LineStart: 12}})
	return s
}

type recorder struct {
	reqs []tui.ActionRequest
}

func (r *recorder) publish(req tui.ActionRequest) error {
	r.reqs = append(r.reqs, req)
	return nil
}

func newTestRoot(t *testing.T) (RootModel, *audit.Store, *recorder) {
	t.Helper()
	s := newTestStore()
	rec := &recorder{}
	m := NewRootModel(s, RootOptions{Title: "auditctl t1", Publish: rec.publish})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(RootModel), s, rec
}

func update(t *testing.T, m RootModel, msg tea.Msg) (RootModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(RootModel), cmd
}

func TestRootModel_ViewShowsPanes(t *testing.T) {
	m, _, _ := newTestRoot(t)
	v := m.View()
	require.Contains(t, v, "auditctl t1")
	require.Contains(t, v, "Agents (2)")
	require.Contains(t, v, "Findings (1)")
	require.Contains(t, v, "Activity: task (2)")
	require.Contains(t, v, "semgrep")
	require.Contains(t, v, "running")
}

func TestRootModel_GlobalKeysPublishActions(t *testing.T) {
	m, _, rec := newTestRoot(t)

	for _, k := range []string{"a", "s", "r", "R"} {
		var cmd tea.Cmd
		m, cmd = update(t, m, key(k))
		require.NotNil(t, cmd, k)
		require.Nil(t, cmd())
	}
	require.Equal(t, []tui.ActionKind{
		tui.ActionToggleShowAll,
		tui.ActionToggleAutoScroll,
		tui.ActionReconnect,
		tui.ActionResetStream,
	}, kinds(rec.reqs))
}

func kinds(reqs []tui.ActionRequest) []tui.ActionKind {
	out := make([]tui.ActionKind, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Kind)
	}
	return out
}

func TestRootModel_FocusCycles(t *testing.T) {
	m, _, _ := newTestRoot(t)
	require.Equal(t, PaneLogs, m.Focus())
	m, _ = update(t, m, key("tab"))
	require.Equal(t, PaneFindings, m.Focus())
	m, _ = update(t, m, key("tab"))
	require.Equal(t, PaneAgents, m.Focus())
	m, _ = update(t, m, key("shift+tab"))
	require.Equal(t, PaneFindings, m.Focus())
}

func TestRootModel_SelectAgentFromTree(t *testing.T) {
	m, s, rec := newTestRoot(t)
	m, _ = update(t, m, key("shift+tab"))
	require.Equal(t, PaneAgents, m.Focus())

	m, _ = update(t, m, key("down"))
	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	msg := cmd()
	req, ok := msg.(tui.ActionRequestMsg)
	require.True(t, ok)
	require.Equal(t, tui.ActionSelectAgent, req.Request.Kind)
	require.Equal(t, "recon", req.Request.AgentID)

	m, cmd = update(t, m, msg)
	require.NotNil(t, cmd)
	require.Nil(t, cmd())
	require.Len(t, rec.reqs, 1)

	s.Dispatch(audit.SelectAgent{AgentID: "recon"})
	m, _ = update(t, m, tui.StoreChangedMsg{Rev: s.Snapshot().Revision()})
	require.Contains(t, m.View(), "Activity: Recon (1)")

	_, cmd = update(t, m, key("enter"))
	req = cmd().(tui.ActionRequestMsg)
	require.Equal(t, "", req.Request.AgentID)
}

func TestRootModel_ExpandFollowsNewestLog(t *testing.T) {
	m, s, _ := newTestRoot(t)

	_, cmd := update(t, m, key("e"))
	require.NotNil(t, cmd)
	req := cmd().(tui.ActionRequestMsg)
	require.Equal(t, tui.ActionToggleExpanded, req.Request.Kind)
	require.Equal(t, "log-2", req.Request.LogID)

	s.Dispatch(audit.AddLog{Item: audit.LogItem{Type: audit.LogPhase, Title: "Started: analysis"}})
	m, _ = update(t, m, tui.StoreChangedMsg{Rev: s.Snapshot().Revision()})
	_, cmd = update(t, m, key("e"))
	req = cmd().(tui.ActionRequestMsg)
	require.Equal(t, "log-3", req.Request.LogID)
}

func TestRootModel_SearchSwallowsGlobalKeys(t *testing.T) {
	m, _, rec := newTestRoot(t)
	m, _ = update(t, m, key("/"))
	require.True(t, m.logs.Searching())

	m, _ = update(t, m, key("q"))
	m, _ = update(t, m, key("a"))
	require.True(t, m.logs.Searching())
	require.Empty(t, rec.reqs)

	m, _ = update(t, m, key("esc"))
	require.False(t, m.logs.Searching())

	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())
}

func TestRootModel_NoticesAndConnection(t *testing.T) {
	m, _, _ := newTestRoot(t)
	m, _ = update(t, m, tui.ConnectionMsg{Connection: tui.Connection{State: "reconnecting", ReconnectAttempts: 2, MaxReconnectAttempts: 5}})
	require.Contains(t, m.View(), "reconnecting 2/5")

	m, _ = update(t, m, tui.NoticeMsg{Notice: tui.Notice{Source: "stream", Level: tui.LogLevelWarn, Text: "connection lost"}})
	m, _ = update(t, m, key("n"))
	v := m.View()
	require.Contains(t, v, "Notices (1)")
	require.Contains(t, v, "connection lost")
}
