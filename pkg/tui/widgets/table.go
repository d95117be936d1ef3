package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
)

// TableColumn defines a column in the table.
type TableColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// TableRow represents a row in the table.
type TableRow struct {
	Icon     string
	Indent   int
	Cells    []string
	Selected bool
}

// Table renders a styled table with selection support. When Height is set,
// only the window of rows around the cursor is drawn.
type Table struct {
	Columns []TableColumn
	Rows    []TableRow
	Cursor  int
	Width   int
	Height  int
	theme   styles.Theme
}

// NewTable creates a new table.
func NewTable(cols []TableColumn) Table {
	return Table{
		Columns: cols,
		theme:   styles.DefaultTheme(),
	}
}

// WithRows sets the table rows.
func (t Table) WithRows(rows []TableRow) Table {
	t.Rows = rows
	return t
}

// WithCursor sets the selected row index.
func (t Table) WithCursor(idx int) Table {
	t.Cursor = idx
	return t
}

// WithSize sets the table dimensions.
func (t Table) WithSize(width, height int) Table {
	t.Width = width
	t.Height = height
	return t
}

func (t Table) window() (int, int) {
	n := len(t.Rows)
	if t.Height <= 0 || n <= t.Height {
		return 0, n
	}
	start := t.Cursor - t.Height/2
	if start < 0 {
		start = 0
	}
	if start+t.Height > n {
		start = n - t.Height
	}
	return start, start + t.Height
}

func (t Table) iconStyle(icon string) lipgloss.Style {
	switch icon {
	case styles.IconError:
		return t.theme.StatusDead
	case styles.IconPending:
		return t.theme.StatusPending
	case styles.IconWarning, styles.IconFinding:
		return t.theme.StatusWarn
	}
	return t.theme.StatusRunning
}

// Render returns the styled table as a string.
func (t Table) Render() string {
	if len(t.Rows) == 0 {
		return t.theme.TitleMuted.Render("(no data)")
	}

	theme := t.theme
	var lines []string

	cols := t.Columns
	if len(cols) == 0 {
		cols = make([]TableColumn, len(t.Rows[0].Cells))
		for i := range cols {
			cols[i] = TableColumn{Width: 20}
		}
	}

	start, end := t.window()
	for i := start; i < end; i++ {
		row := t.Rows[i]
		isSelected := i == t.Cursor

		var parts []string

		cursor := "  "
		if isSelected {
			cursor = theme.KeybindKey.Render("> ")
		}
		parts = append(parts, cursor)
		if row.Indent > 0 {
			parts = append(parts, strings.Repeat("  ", row.Indent))
		}

		if row.Icon != "" {
			parts = append(parts, t.iconStyle(row.Icon).Render(row.Icon)+" ")
		}

		for j, cell := range row.Cells {
			width := 20
			if j < len(cols) && cols[j].Width > 0 {
				width = cols[j].Width
			}
			if j == 0 && row.Indent > 0 {
				width -= 2 * row.Indent
				if width < 4 {
					width = 4
				}
			}

			cellStyle := lipgloss.NewStyle().Width(width)
			if j < len(cols) {
				cellStyle = cellStyle.Align(cols[j].Align)
			}

			if isSelected {
				cellStyle = cellStyle.Bold(true).Foreground(theme.Text)
			} else {
				cellStyle = cellStyle.Foreground(theme.TextDim)
			}

			parts = append(parts, cellStyle.Render(Truncate(cell, width)))
		}

		line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)

		if isSelected {
			line = theme.Selected.Width(t.Width).Render(line)
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// Truncate shortens s to at most width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// AgentRow builds a row for the agent tree pane.
func AgentRow(name, agentType, status string, findings, depth int, selected bool) TableRow {
	cells := []string{name, agentType, status}
	if findings > 0 {
		cells = append(cells, fmt.Sprintf("%d", findings))
	} else {
		cells = append(cells, "")
	}
	return TableRow{
		Icon:     styles.AgentStatusIcon(status),
		Indent:   depth,
		Cells:    cells,
		Selected: selected,
	}
}

// FindingRow builds a row for the findings pane.
func FindingRow(severity, title, location string, verified, selected bool) TableRow {
	icon := styles.IconFinding
	if verified {
		icon = styles.IconSuccess
	}
	return TableRow{
		Icon:     icon,
		Cells:    []string{strings.ToUpper(severity), title, location},
		Selected: selected,
	}
}
