package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
)

// Pane is a bordered dashboard section: a title line with an optional item
// count on the left and key hints on the right, above a body clipped to the
// pane's height.
type Pane struct {
	title   string
	count   int
	hints   string
	body    string
	width   int
	height  int
	focused bool
	theme   styles.Theme
}

func NewPane(title string) Pane {
	return Pane{title: title, count: -1, theme: styles.DefaultTheme()}
}

// WithCount shows "(n)" after the title. Negative hides it.
func (p Pane) WithCount(n int) Pane {
	p.count = n
	return p
}

func (p Pane) WithHints(hints string) Pane {
	p.hints = hints
	return p
}

func (p Pane) WithBody(body string) Pane {
	p.body = body
	return p
}

// WithSize sets the outer size including the border. Zero height grows to
// fit the body.
func (p Pane) WithSize(width, height int) Pane {
	p.width = width
	p.height = height
	return p
}

func (p Pane) WithFocus(focused bool) Pane {
	p.focused = focused
	return p
}

// InnerSize is the space left for the body.
func (p Pane) InnerSize() (int, int) {
	return max(0, p.width-2), max(0, p.height-3)
}

func (p Pane) Render() string {
	border := p.theme.Border
	titleStyle := p.theme.Title
	if p.focused {
		border = p.theme.BorderFocused
		titleStyle = titleStyle.Foreground(p.theme.Secondary)
	}
	innerWidth, innerHeight := p.InnerSize()

	lines := []string{p.titleLine(titleStyle, innerWidth)}
	body := strings.Split(p.body, "\n")
	if p.height > 0 && len(body) > innerHeight {
		body = body[:innerHeight]
	}
	lines = append(lines, body...)

	style := border
	if p.width > 0 {
		style = style.Width(innerWidth)
	}
	if p.height > 0 {
		style = style.Height(innerHeight + 1)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (p Pane) titleLine(titleStyle lipgloss.Style, width int) string {
	title := p.title
	if p.count >= 0 {
		title = fmt.Sprintf("%s (%d)", title, p.count)
	}
	if width > 0 {
		title = Truncate(title, width)
	}
	left := titleStyle.Render(title)
	if p.hints == "" || width == 0 {
		return left
	}
	room := width - lipgloss.Width(left) - 1
	if room < 4 {
		return left
	}
	right := p.theme.TitleMuted.Render(Truncate(p.hints, room))
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	return left + strings.Repeat(" ", max(1, gap)) + right
}
