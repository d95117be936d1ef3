package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
	"github.com/go-go-golems/auditctl/pkg/tui/widgets"
)

const maxNotices = 200

// noticeLevels is the order "l" cycles the minimum shown level through.
var noticeLevels = []tui.LogLevel{tui.LogLevelDebug, tui.LogLevelInfo, tui.LogLevelWarn, tui.LogLevelError}

func levelRank(l tui.LogLevel) int {
	for i, v := range noticeLevels {
		if v == l {
			return i
		}
	}
	return 1 // unset levels count as info
}

// notice is a run of identical consecutive notices.
type notice struct {
	tui.Notice
	repeats int
}

func (n notice) sameAs(o tui.Notice) bool {
	return n.Source == o.Source && n.Level == o.Level && n.Text == o.Text
}

// NoticesModel lists connection and action notices, newest at the bottom.
// Repeats of the same notice collapse into one line with a counter.
type NoticesModel struct {
	entries  []notice
	minLevel tui.LogLevel

	searching bool
	search    textinput.Model
	filter    string

	width  int
	height int
	vp     viewport.Model
}

func NewNoticesModel() NoticesModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200
	return NoticesModel{minLevel: tui.LogLevelDebug, search: search, vp: viewport.New(0, 0)}
}

func (m NoticesModel) WithSize(width, height int) NoticesModel {
	m.width, m.height = width, height
	m.vp.Width = max(0, width-2)
	m.vp.Height = max(1, height-3)
	return m.render(false)
}

func (m NoticesModel) Searching() bool { return m.searching }

// Len counts notices received, repeats included.
func (m NoticesModel) Len() int {
	n := 0
	for _, e := range m.entries {
		n += e.repeats
	}
	return n
}

// Visible returns the notices passing the level and text filters.
func (m NoticesModel) Visible() []tui.Notice {
	var out []tui.Notice
	for _, e := range m.entries {
		if m.shows(e) {
			out = append(out, e.Notice)
		}
	}
	return out
}

func (m NoticesModel) shows(e notice) bool {
	if levelRank(e.Level) < levelRank(m.minLevel) {
		return false
	}
	return m.filter == "" || strings.Contains(e.Text, m.filter) || strings.Contains(e.Source, m.filter)
}

func (m NoticesModel) Append(n tui.Notice) NoticesModel {
	if last := len(m.entries) - 1; last >= 0 && m.entries[last].sameAs(n) {
		entries := append([]notice(nil), m.entries...)
		entries[last].At = n.At
		entries[last].repeats++
		m.entries = entries
		return m.render(true)
	}
	m.entries = append(m.entries, notice{Notice: n, repeats: 1})
	if len(m.entries) > maxNotices {
		m.entries = append([]notice(nil), m.entries[len(m.entries)-maxNotices:]...)
	}
	return m.render(true)
}

func (m NoticesModel) Update(msg tea.Msg) (NoticesModel, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searching {
		switch k.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			return m, nil
		case "enter":
			m.filter = strings.TrimSpace(m.search.Value())
			m.searching = false
			m.search.Blur()
			return m.render(true), nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(k)
		return m, cmd
	}

	switch k.String() {
	case "/":
		m.searching = true
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return m, nil
	case "ctrl+l":
		m.filter = ""
		m.search.SetValue("")
		return m.render(true), nil
	case "l":
		m.minLevel = noticeLevels[(levelRank(m.minLevel)+1)%len(noticeLevels)]
		return m.render(true), nil
	case "c":
		m.entries = nil
		return m.render(true), nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(k)
	return m, cmd
}

func (m NoticesModel) View(focused bool) string {
	theme := styles.DefaultTheme()

	hints := "[l] level  [/] filter  [c] clear"
	if m.minLevel != tui.LogLevelDebug {
		hints = fmt.Sprintf("≥%s  %s", m.minLevel, hints)
	}
	if m.filter != "" {
		hints = fmt.Sprintf("filter=%q  %s", m.filter, hints)
	}

	pane := widgets.NewPane("Notices").
		WithCount(m.Len()).
		WithHints(hints).
		WithFocus(focused).
		WithSize(m.width, m.height)
	if len(m.Visible()) == 0 {
		pane = pane.WithBody(theme.TitleMuted.Render("(no notices)"))
	} else {
		pane = pane.WithBody(m.vp.View())
	}

	if !m.searching {
		return pane.Render()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.search.View(), pane.Render())
}

func (m NoticesModel) render(bottom bool) NoticesModel {
	theme := styles.DefaultTheme()
	var lines []string
	for _, e := range m.entries {
		if !m.shows(e) {
			continue
		}
		style := theme.TitleMuted
		switch e.Level {
		case tui.LogLevelError:
			style = theme.StatusDead
		case tui.LogLevelWarn:
			style = theme.StatusWarn
		}
		source := e.Source
		if source == "" {
			source = "system"
		}
		line := fmt.Sprintf("%s %s %s  %s",
			style.Render(styles.LogLevelIcon(string(e.Level))),
			theme.TitleMuted.Render(e.At.Format("15:04:05")),
			theme.TitleMuted.Render("["+source+"]"),
			style.Render(e.Text))
		if e.repeats > 1 {
			line += theme.TitleMuted.Render(fmt.Sprintf(" ×%d", e.repeats))
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		m.vp.SetContent("")
		return m
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if bottom {
		m.vp.GotoBottom()
	}
	return m
}
