package models

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/go-go-golems/auditctl/pkg/tui/widgets"
)

type agentRow struct {
	node  audit.AgentNode
	depth int
}

// AgentsModel shows the agent hierarchy. Enter scopes the activity log to
// the agent under the cursor; pressing it again on the selected agent or
// esc clears the scope.
type AgentsModel struct {
	rows     []agentRow
	cursor   int
	selected string

	width  int
	height int
}

func NewAgentsModel() AgentsModel { return AgentsModel{} }

func (m AgentsModel) WithSize(width, height int) AgentsModel {
	m.width, m.height = width, height
	return m
}

func (m AgentsModel) WithTree(nodes []*audit.TreeNode, selected string) AgentsModel {
	rows := make([]agentRow, 0, len(m.rows))
	audit.Walk(nodes, func(n *audit.TreeNode, depth int) {
		rows = append(rows, agentRow{node: n.AgentNode, depth: depth})
	})
	m.rows = rows
	m.selected = selected
	if m.cursor >= len(rows) {
		m.cursor = max(0, len(rows)-1)
	}
	return m
}

// Current returns the agent under the cursor.
func (m AgentsModel) Current() (audit.AgentNode, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return audit.AgentNode{}, false
	}
	return m.rows[m.cursor].node, true
}

func (m AgentsModel) Update(msg tea.Msg) (AgentsModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch v.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "enter":
		n, ok := m.Current()
		if !ok {
			return m, nil
		}
		id := n.AgentID
		if id == m.selected {
			id = ""
		}
		return m, selectAgent(id)
	case "esc":
		if m.selected == "" {
			return m, nil
		}
		return m, selectAgent("")
	}
	return m, nil
}

func selectAgent(id string) tea.Cmd {
	req := tui.ActionRequest{Kind: tui.ActionSelectAgent, AgentID: id}
	return func() tea.Msg { return tui.ActionRequestMsg{Request: req} }
}

func (m AgentsModel) View(focused bool) string {
	nameWidth := max(8, m.width-30)
	table := widgets.NewTable([]widgets.TableColumn{
		{Header: "Agent", Width: nameWidth},
		{Header: "Type", Width: 10},
		{Header: "Status", Width: 10},
		{Header: "Findings", Width: 4},
	})

	rows := make([]widgets.TableRow, 0, len(m.rows))
	for _, r := range m.rows {
		name := r.node.AgentName
		if name == "" {
			name = r.node.AgentID
		}
		if r.node.AgentID == m.selected {
			name = "● " + name
		}
		rows = append(rows, widgets.AgentRow(name, r.node.AgentType, r.node.Status, r.node.FindingsCount, r.depth, r.node.AgentID == m.selected))
	}
	cursor := m.cursor
	if !focused {
		cursor = -1
	}

	titleRight := "[enter] select"
	if m.selected != "" {
		titleRight = "[esc] clear"
	}
	pane := widgets.NewPane("Agents").
		WithCount(len(m.rows)).
		WithHints(titleRight).
		WithFocus(focused).
		WithSize(m.width, m.height)
	w, h := pane.InnerSize()
	return pane.WithBody(table.WithRows(rows).WithCursor(cursor).WithSize(w, max(1, h)).Render()).Render()
}
