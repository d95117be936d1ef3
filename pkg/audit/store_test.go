package audit

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	var n atomic.Int64
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewStore(StoreOptions{
		NewID: func() string { return fmt.Sprintf("log-%d", n.Add(1)) },
		Now:   func() time.Time { return t0 },
	})
}

func sampleTree() *AgentTree {
	return &AgentTree{
		TaskID:      "task",
		RootAgentID: "root",
		Nodes: []AgentNode{
			{ID: "n1", AgentID: "root", AgentName: "Orchestrator"},
			{ID: "n2", AgentID: "recon", AgentName: "Recon", ParentAgentID: "root", Depth: 1},
			{ID: "n3", AgentID: "analysis", AgentName: "Analysis", ParentAgentID: "root", Depth: 1},
			{ID: "n4", AgentID: "sqli", AgentName: "SQLi Hunter", ParentAgentID: "analysis", Depth: 2},
		},
	}
}

func TestStore_TreeNodes(t *testing.T) {
	s := testStore()
	require.Nil(t, s.TreeNodes())

	s.Dispatch(SetAgentTree{Tree: sampleTree()})
	roots := s.TreeNodes()
	require.Len(t, roots, 1)
	require.Equal(t, "root", roots[0].AgentID)
	require.Len(t, roots[0].Children, 2)
	require.Equal(t, "sqli", roots[0].Children[1].Children[0].AgentID)

	// unrelated changes reuse the cached tree
	s.Dispatch(AddLog{Item: LogItem{Title: "x"}})
	require.Same(t, roots[0], s.TreeNodes()[0])
}

func TestStore_FilteredLogsFollowSelectedAgentAndDescendants(t *testing.T) {
	s := testStore()
	s.Dispatch(SetAgentTree{Tree: sampleTree()})
	for _, agent := range []string{"Orchestrator", "Recon", "Analysis", "SQLi Hunter", ""} {
		s.Dispatch(AddLog{Item: LogItem{Type: LogInfo, Title: "from " + agent, AgentName: agent}})
	}
	require.Len(t, s.FilteredLogs(), 5)

	s.Dispatch(SelectAgent{AgentID: "analysis"})
	var titles []string
	for _, l := range s.FilteredLogs() {
		titles = append(titles, l.Title)
	}
	require.Equal(t, []string{"from Analysis", "from SQLi Hunter"}, titles)

	s.Dispatch(ToggleShowAllLogs{})
	require.Len(t, s.FilteredLogs(), 5)
}

func TestStore_FilteredLogsMemoized(t *testing.T) {
	s := testStore()
	s.Dispatch(AddLog{Item: LogItem{Title: "a"}})
	s.Dispatch(SelectAgent{AgentID: "nobody"})
	first := s.FilteredLogs()
	s.Dispatch(SetAutoScroll{Enabled: false})
	second := s.FilteredLogs()
	require.Empty(t, first)
	require.Equal(t, fmt.Sprintf("%p", first), fmt.Sprintf("%p", second))
}

func TestStore_StampsIDsAndReplaysActionLog(t *testing.T) {
	s := testStore()
	s.Dispatch(AddLog{Item: LogItem{Type: LogTool, Title: "lint", Tool: &ToolInfo{Name: "lint", Status: ToolRunning}}})
	s.Dispatch(UpdateOrAddProgressLog{ProgressKey: "p", Title: "1/3"})
	s.Dispatch(UpdateOrAddProgressLog{ProgressKey: "p", Title: "2/3"})
	s.Dispatch(CompleteToolLog{ToolName: "lint", DurationMs: 120})
	s.Dispatch(SelectAgent{AgentID: "x"})

	live := s.Snapshot()
	require.Equal(t, "log-1", live.Logs[0].ID)
	require.Len(t, s.Actions(), 5)

	replayed := Replay(s.Actions())
	require.Equal(t, live.Logs, replayed.Logs)
	require.Equal(t, live.Scope, replayed.Scope)
}

func TestStore_ActionLogBounded(t *testing.T) {
	s := NewStore(StoreOptions{MaxActionLog: 2})
	for i := 0; i < 5; i++ {
		s.Dispatch(AddLog{Item: LogItem{Title: fmt.Sprint(i)}})
	}
	actions := s.Actions()
	require.Len(t, actions, 2)
	require.Equal(t, "4", actions[1].(AddLog).Item.Title)
	require.Len(t, s.Snapshot().Logs, 5)
}

func TestStore_SubscribeReceivesChangesOnly(t *testing.T) {
	s := testStore()
	var got []uint64
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st.Revision()) })

	s.Dispatch(SetAutoScroll{Enabled: false})
	s.Dispatch(SetAutoScroll{Enabled: false})
	s.Dispatch(AddLog{Item: LogItem{Title: "a"}})
	unsubscribe()
	s.Dispatch(AddLog{Item: LogItem{Title: "b"}})

	require.Equal(t, []uint64{1, 2}, got)
}

func TestStore_ResetClearsRefs(t *testing.T) {
	s := testStore()
	s.Refs().SetCurrentThinkingID("t")
	s.Refs().SetCurrentAgentName("a")
	s.Dispatch(Reset{})
	require.Equal(t, "", s.Refs().CurrentThinkingID())
	require.Equal(t, "", s.Refs().CurrentAgentName())
}

func TestStore_Stats(t *testing.T) {
	s := testStore()
	s.Dispatch(AddLog{Item: LogItem{Type: LogTool, Tool: &ToolInfo{Name: "a", Status: ToolRunning}}})
	s.Dispatch(AddLog{Item: LogItem{Type: LogTool, Tool: &ToolInfo{Name: "b", Status: ToolCompleted}}})
	s.Dispatch(AddLog{Item: LogItem{Type: LogError}})
	st := s.Stats()
	require.Equal(t, Stats{Logs: 3, ToolCalls: 2, RunningTools: 1, Errors: 1}, st)
}
