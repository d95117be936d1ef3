package models

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
	"github.com/go-go-golems/auditctl/pkg/tui/widgets"
)

// FindingsModel lists findings in arrival order. Enter toggles a detail
// view of the finding under the cursor.
type FindingsModel struct {
	findings []protocol.Finding
	cursor   int
	detail   bool

	width  int
	height int
}

func NewFindingsModel() FindingsModel { return FindingsModel{} }

func (m FindingsModel) WithSize(width, height int) FindingsModel {
	m.width, m.height = width, height
	return m
}

func (m FindingsModel) WithFindings(fs []protocol.Finding) FindingsModel {
	m.findings = fs
	if m.cursor >= len(fs) {
		m.cursor = max(0, len(fs)-1)
	}
	return m
}

func (m FindingsModel) Update(msg tea.Msg) (FindingsModel, tea.Cmd) {
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
		if m.cursor < len(m.findings)-1 {
			m.cursor++
		}
	case "enter":
		m.detail = !m.detail && len(m.findings) > 0
	case "esc":
		m.detail = false
	}
	return m, nil
}

func location(f protocol.Finding) string {
	if f.FilePath == "" {
		return ""
	}
	if f.LineStart > 0 {
		return fmt.Sprintf("%s:%d", f.FilePath, f.LineStart)
	}
	return f.FilePath
}

func (m FindingsModel) View(focused bool) string {
	pane := widgets.NewPane("Findings").
		WithCount(len(m.findings)).
		WithHints("[enter] details").
		WithFocus(focused).
		WithSize(m.width, m.height)

	if m.detail && m.cursor < len(m.findings) {
		return pane.WithHints("[enter] back").WithBody(m.renderDetail(m.findings[m.cursor])).Render()
	}

	titleWidth := max(8, (m.width-20)/2)
	table := widgets.NewTable([]widgets.TableColumn{
		{Header: "Severity", Width: 9},
		{Header: "Title", Width: titleWidth},
		{Header: "Location", Width: max(8, m.width-titleWidth-18)},
	})
	rows := make([]widgets.TableRow, 0, len(m.findings))
	for _, f := range m.findings {
		rows = append(rows, widgets.FindingRow(f.Severity, f.Title, location(f), f.IsVerified, false))
	}
	cursor := m.cursor
	if !focused {
		cursor = -1
	}
	w, h := pane.InnerSize()
	return pane.WithBody(table.WithRows(rows).WithCursor(cursor).WithSize(w, max(1, h)).Render()).Render()
}

func (m FindingsModel) renderDetail(f protocol.Finding) string {
	theme := styles.DefaultTheme()
	width := max(10, m.width-4)
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	b.WriteString(theme.SeverityStyle(strings.ToLower(f.Severity)).Render(strings.ToUpper(f.Severity)))
	b.WriteString(" ")
	b.WriteString(theme.Title.Render(f.Title))
	b.WriteString("\n")
	if loc := location(f); loc != "" {
		b.WriteString(theme.TitleMuted.Render(loc))
		b.WriteString("\n")
	}
	if f.VulnerabilityType != "" {
		b.WriteString(theme.TitleMuted.Render("type: " + f.VulnerabilityType))
		b.WriteString("\n")
	}
	if f.AgentName != "" {
		b.WriteString(theme.TitleMuted.Render("reported by " + f.AgentName))
		b.WriteString("\n")
	}
	if f.Description != "" {
		b.WriteString("\n" + wrap.Render(f.Description) + "\n")
	}
	if f.CodeSnippet != "" {
		b.WriteString("\n" + theme.LogTool.Render(f.CodeSnippet) + "\n")
	}
	if f.Suggestion != "" {
		b.WriteString("\n" + wrap.Render("Suggestion: "+f.Suggestion) + "\n")
	}
	return b.String()
}
