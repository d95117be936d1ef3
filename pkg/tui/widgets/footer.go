package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
)

// Footer renders a styled keybindings bar with an optional status on the left.
type Footer struct {
	Keybinds []Keybind
	Status   string
	Width    int
	theme    styles.Theme
}

// NewFooter creates a new footer.
func NewFooter(keybinds []Keybind) Footer {
	return Footer{
		Keybinds: keybinds,
		theme:    styles.DefaultTheme(),
	}
}

// WithWidth sets the footer width.
func (f Footer) WithWidth(w int) Footer {
	f.Width = w
	return f
}

// WithStatus sets the left-aligned status text.
func (f Footer) WithStatus(s string) Footer {
	f.Status = s
	return f
}

// Render returns the styled footer as a string.
func (f Footer) Render() string {
	theme := f.theme

	separator := lipgloss.NewStyle().
		Foreground(theme.Muted).
		Render(rule(f.Width))

	keybindsLine := RenderKeybinds(f.Keybinds, theme)
	if f.Status == "" {
		keybindsWidth := lipgloss.Width(keybindsLine)
		padding := (f.Width - keybindsWidth) / 2
		if padding < 0 {
			padding = 0
		}
		paddedKeybinds := lipgloss.NewStyle().
			PaddingLeft(padding).
			Width(f.Width).
			Render(keybindsLine)
		return lipgloss.JoinVertical(lipgloss.Left, separator, paddedKeybinds)
	}

	status := theme.TitleMuted.Render(f.Status)
	spacing := f.Width - lipgloss.Width(status) - lipgloss.Width(keybindsLine)
	if spacing < 1 {
		spacing = 1
	}
	spacer := lipgloss.NewStyle().Width(spacing).Render("")
	line := lipgloss.JoinHorizontal(lipgloss.Top, status, spacer, keybindsLine)
	return lipgloss.JoinVertical(lipgloss.Left, separator, line)
}

// rule returns a heavy horizontal line exactly w cells wide.
func rule(w int) string {
	if w <= 0 {
		w = 80
	}
	chars := make([]rune, w)
	for i := range chars {
		chars[i] = '━'
	}
	return string(chars)
}
