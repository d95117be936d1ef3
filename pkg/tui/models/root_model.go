package models

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/go-go-golems/auditctl/pkg/tui/widgets"
	"github.com/rs/zerolog/log"
)

type PaneID string

const (
	PaneAgents   PaneID = "agents"
	PaneLogs     PaneID = "logs"
	PaneFindings PaneID = "findings"
)

var paneOrder = []PaneID{PaneAgents, PaneLogs, PaneFindings}

type RootOptions struct {
	Title string
	// Publish sends an action request to the runner. Nil drops requests.
	Publish func(tui.ActionRequest) error
}

// RootModel lays out the agents, activity and findings panes between the
// connection header and the keybinding footer. It reads everything it
// shows from the store; bus messages only tell it when to look again.
type RootModel struct {
	store *audit.Store
	opts  RootOptions

	width  int
	height int

	focus       PaneID
	showNotices bool
	conn        tui.Connection

	agents   AgentsModel
	logs     LogsModel
	findings FindingsModel
	notices  NoticesModel
}

func NewRootModel(store *audit.Store, opts RootOptions) RootModel {
	if opts.Title == "" {
		opts.Title = "auditctl"
	}
	m := RootModel{
		store:    store,
		opts:     opts,
		focus:    PaneLogs,
		agents:   NewAgentsModel(),
		logs:     NewLogsModel(),
		findings: NewFindingsModel(),
		notices:  NewNoticesModel(),
	}
	return m.refresh()
}

func (m RootModel) Init() tea.Cmd { return nil }

func (m RootModel) Focus() PaneID { return m.focus }

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		return m.layout(), nil
	case tui.StoreChangedMsg:
		return m.refresh(), nil
	case tui.ConnectionMsg:
		m.conn = v.Connection
		return m, nil
	case tui.NoticeMsg:
		m.notices = m.notices.Append(v.Notice)
		return m, nil
	case tui.ActionRequestMsg:
		return m, m.publish(v.Request)
	case tea.KeyMsg:
		if m.searching() {
			return m.updateFocused(v)
		}
		switch v.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.focus = nextPane(m.focus, 1)
			return m, nil
		case "shift+tab":
			m.focus = nextPane(m.focus, -1)
			return m, nil
		case "n":
			m.showNotices = !m.showNotices
			return m, nil
		case "a":
			return m, m.publish(tui.ActionRequest{Kind: tui.ActionToggleShowAll})
		case "s":
			return m, m.publish(tui.ActionRequest{Kind: tui.ActionToggleAutoScroll})
		case "r":
			return m, m.publish(tui.ActionRequest{Kind: tui.ActionReconnect})
		case "R":
			return m, m.publish(tui.ActionRequest{Kind: tui.ActionResetStream})
		}
		return m.updateFocused(v)
	}
	return m, nil
}

func (m RootModel) searching() bool {
	if m.focus != PaneLogs {
		return false
	}
	if m.showNotices {
		return m.notices.Searching()
	}
	return m.logs.Searching()
}

func (m RootModel) updateFocused(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case PaneAgents:
		m.agents, cmd = m.agents.Update(msg)
	case PaneFindings:
		m.findings, cmd = m.findings.Update(msg)
	default:
		if m.showNotices {
			m.notices, cmd = m.notices.Update(msg)
		} else {
			m.logs, cmd = m.logs.Update(msg)
		}
	}
	return m, cmd
}

func nextPane(cur PaneID, step int) PaneID {
	for i, p := range paneOrder {
		if p == cur {
			return paneOrder[(i+step+len(paneOrder))%len(paneOrder)]
		}
	}
	return PaneLogs
}

func (m RootModel) publish(req tui.ActionRequest) tea.Cmd {
	pub := m.opts.Publish
	if pub == nil {
		return nil
	}
	return func() tea.Msg {
		if err := pub(req); err != nil {
			log.Warn().Err(err).Str("action", string(req.Kind)).Msg("publish action")
			return tui.NoticeMsg{Notice: tui.Notice{Source: "action", Level: tui.LogLevelError, Text: "publish failed: " + err.Error()}}
		}
		return nil
	}
}

func (m RootModel) refresh() RootModel {
	if m.store == nil {
		return m
	}
	st := m.store.Snapshot()
	nodes := m.store.TreeNodes()
	m.agents = m.agents.WithTree(nodes, st.SelectedAgentID())
	m.logs = m.logs.WithLogs(m.store.FilteredLogs(), st.AutoScroll, scopeLabel(st, nodes))
	m.findings = m.findings.WithFindings(st.Findings)
	return m
}

func scopeLabel(st audit.State, nodes []*audit.TreeNode) string {
	switch {
	case st.ShowAllLogs():
		return "all"
	case st.Scope.HasAgent():
		if n := audit.FindNode(nodes, st.SelectedAgentID()); n != nil && n.AgentName != "" {
			return n.AgentName
		}
		return st.SelectedAgentID()
	}
	return "task"
}

const (
	headerHeight = 2
	footerHeight = 2
)

func (m RootModel) layout() RootModel {
	bodyHeight := max(6, m.height-headerHeight-footerHeight)
	leftWidth := max(24, m.width/3)
	rightWidth := max(20, m.width-leftWidth)

	agentsHeight := bodyHeight / 2
	m.agents = m.agents.WithSize(leftWidth, agentsHeight)
	m.findings = m.findings.WithSize(leftWidth, bodyHeight-agentsHeight)
	m.logs = m.logs.WithSize(rightWidth, bodyHeight)
	m.notices = m.notices.WithSize(rightWidth, bodyHeight)
	return m
}

func (m RootModel) header() string {
	h := widgets.NewHeader(m.opts.Title).WithWidth(m.width)
	state := string(m.conn.State)
	if state == "" && m.store != nil {
		state = string(m.store.Snapshot().ConnectionStatus)
	}
	h = h.WithConnection(state, m.conn.ReconnectAttempts, m.conn.MaxReconnectAttempts).
		WithHeartbeat(m.conn.LastHeartbeat)

	if m.store != nil {
		if task := m.store.Snapshot().Task; task != nil {
			h = h.WithTask(task.Status, taskProgress(task))
		}
	}
	return h.Render()
}

func taskProgress(t *audit.AgentTask) int {
	if t.Progress > 0 {
		p := int(t.Progress)
		if p > 100 {
			p = 100
		}
		return p
	}
	if t.TotalFiles > 0 {
		return widgets.PercentOf(t.AnalyzedFiles, t.TotalFiles)
	}
	return 0
}

func (m RootModel) footer() string {
	kb := []widgets.Keybind{
		{Key: "tab", Label: "pane"},
		{Key: "a", Label: "all logs"},
		{Key: "s", Label: "autoscroll"},
		{Key: "n", Label: "notices"},
		{Key: "r", Label: "reconnect"},
		{Key: "R", Label: "reset"},
		{Key: "q", Label: "quit"},
	}
	f := widgets.NewFooter(kb).WithWidth(m.width)
	if m.store != nil {
		s := m.store.Stats()
		f = f.WithStatus(fmt.Sprintf("logs %d · tools %d (%d running) · findings %d · errors %d",
			s.Logs, s.ToolCalls, s.RunningTools, s.Findings, s.Errors))
	}
	return f.Render()
}

func (m RootModel) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.agents.View(m.focus == PaneAgents),
		m.findings.View(m.focus == PaneFindings),
	)
	var right string
	if m.showNotices {
		right = m.notices.View(m.focus == PaneLogs)
	} else {
		right = m.logs.View(m.focus == PaneLogs)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), body, m.footer())
}
