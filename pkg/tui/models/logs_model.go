package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
	"github.com/go-go-golems/auditctl/pkg/tui/widgets"
)

// LogsModel renders the filtered activity log with a cursor. Expanded
// entries show their content under the title.
type LogsModel struct {
	logs   []audit.LogItem
	scope  string
	follow bool

	// visible holds indexes into logs after the text filter.
	visible []int
	cursor  int

	width  int
	height int

	searching bool
	search    textinput.Model
	filter    string

	vp viewport.Model
}

func NewLogsModel() LogsModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200

	m := LogsModel{follow: true, search: search, scope: "all"}
	m.vp = viewport.New(0, 0)
	return m
}

func (m LogsModel) WithSize(width, height int) LogsModel {
	m.width, m.height = width, height
	m.vp.Width = max(0, width-2)
	m.vp.Height = max(1, height-3)
	return m.refresh()
}

// WithLogs replaces the entries. With follow on, the cursor moves to the
// newest visible entry.
func (m LogsModel) WithLogs(logs []audit.LogItem, follow bool, scope string) LogsModel {
	m.logs = logs
	m.follow = follow
	m.scope = scope
	return m.refresh()
}

func (m LogsModel) Searching() bool { return m.searching }

// Selected returns the entry under the cursor.
func (m LogsModel) Selected() (audit.LogItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return audit.LogItem{}, false
	}
	return m.logs[m.visible[m.cursor]], true
}

func (m LogsModel) Update(msg tea.Msg) (LogsModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searching {
		switch v.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			return m, nil
		case "enter":
			m.filter = strings.TrimSpace(m.search.Value())
			m.searching = false
			m.search.Blur()
			return m.refresh(), nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(v)
		return m, cmd
	}

	switch v.String() {
	case "/":
		m.searching = true
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return m, nil
	case "ctrl+l":
		m.filter = ""
		m.search.SetValue("")
		return m.refresh(), nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.follow = false
		return m.refresh(), nil
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m.refresh(), nil
	case "G", "end":
		m.cursor = len(m.visible) - 1
		return m.refresh(), nil
	case "e", "enter":
		item, ok := m.Selected()
		if !ok {
			return m, nil
		}
		req := tui.ActionRequest{Kind: tui.ActionToggleExpanded, LogID: item.ID}
		return m, func() tea.Msg { return tui.ActionRequestMsg{Request: req} }
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(v)
	return m, cmd
}

func (m LogsModel) View(focused bool) string {
	theme := styles.DefaultTheme()

	titleRight := "[e] expand  [/] filter"
	if m.filter != "" {
		titleRight = fmt.Sprintf("filter=%q  %s", m.filter, titleRight)
	}
	if !m.follow {
		titleRight = "paused  " + titleRight
	}

	var sections []string
	if m.searching {
		sections = append(sections, m.search.View())
	}

	pane := widgets.NewPane("Activity: " + m.scope).
		WithCount(len(m.visible)).
		WithHints(titleRight).
		WithFocus(focused).
		WithSize(m.width, m.height)
	if len(m.visible) == 0 {
		pane = pane.WithBody(theme.TitleMuted.Render("(no activity yet)"))
	} else {
		pane = pane.WithBody(m.vp.View())
	}
	sections = append(sections, pane.Render())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m LogsModel) refresh() LogsModel {
	visible := make([]int, 0, len(m.logs))
	for i, l := range m.logs {
		if m.filter != "" && !strings.Contains(l.Title, m.filter) && !strings.Contains(l.Content, m.filter) {
			continue
		}
		visible = append(visible, i)
	}
	m.visible = visible
	if m.follow || m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	var lines []string
	cursorLine := 0
	for i, idx := range m.visible {
		if i == m.cursor {
			cursorLine = len(lines)
		}
		lines = append(lines, renderLogItem(m.logs[idx], i == m.cursor, m.vp.Width)...)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))

	switch {
	case m.follow:
		m.vp.GotoBottom()
	case cursorLine < m.vp.YOffset:
		m.vp.SetYOffset(cursorLine)
	case cursorLine >= m.vp.YOffset+m.vp.Height:
		m.vp.SetYOffset(cursorLine - m.vp.Height + 1)
	}
	return m
}

func logStyle(theme styles.Theme, t audit.LogType) lipgloss.Style {
	switch t {
	case audit.LogThinking:
		return theme.LogThinking
	case audit.LogTool:
		return theme.LogTool
	case audit.LogPhase:
		return theme.LogPhase
	case audit.LogFinding:
		return theme.LogFinding
	case audit.LogError:
		return theme.LogError
	}
	return lipgloss.NewStyle().Foreground(theme.Text)
}

func renderLogItem(l audit.LogItem, selected bool, width int) []string {
	theme := styles.DefaultTheme()
	style := logStyle(theme, l.Type)

	icon := styles.LogTypeIcon(string(l.Type))
	title := l.Title
	if l.Tool != nil {
		icon = styles.ToolIcon(string(l.Tool.Status))
		if l.Tool.DurationMs > 0 {
			title = fmt.Sprintf("%s (%dms)", title, l.Tool.DurationMs)
		}
	}
	if l.Type == audit.LogThinking && !l.Expanded && l.Content != "" {
		title = firstLine(l.Content)
	}

	parts := []string{
		style.Render(icon),
		" ",
		theme.TitleMuted.Render(l.Time.Format("15:04:05")),
		" ",
	}
	if l.AgentName != "" {
		parts = append(parts, theme.TitleMuted.Render("["+l.AgentName+"]"), " ")
	}
	parts = append(parts, style.Render(title))
	line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	if selected {
		line = theme.Selected.Render(line)
	}

	out := []string{line}
	if l.Expanded && l.Content != "" {
		body := lipgloss.NewStyle().
			PaddingLeft(4).
			Width(max(10, width)).
			Foreground(theme.TextDim).
			Render(l.Content)
		out = append(out, strings.Split(body, "\n")...)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
