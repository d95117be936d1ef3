package widgets

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
)

// Keybind represents a keybinding hint.
type Keybind struct {
	Key   string
	Label string
}

// Header renders the title bar: task, connection state and progress.
type Header struct {
	Title string

	Connection    string
	Attempts      int
	MaxAttempts   int
	LastHeartbeat time.Time

	TaskStatus string
	Progress   int

	Width    int
	Keybinds []Keybind
	now      func() time.Time
	theme    styles.Theme
}

// NewHeader creates a new header.
func NewHeader(title string) Header {
	return Header{
		Title:    title,
		Progress: -1,
		now:      time.Now,
		theme:    styles.DefaultTheme(),
	}
}

// WithConnection sets the stream connection state and retry counters.
func (h Header) WithConnection(state string, attempts, maxAttempts int) Header {
	h.Connection = state
	h.Attempts = attempts
	h.MaxAttempts = maxAttempts
	return h
}

// WithHeartbeat sets the time of the last heartbeat seen.
func (h Header) WithHeartbeat(t time.Time) Header {
	h.LastHeartbeat = t
	return h
}

// WithTask sets the task status and progress percentage. A negative
// progress hides the bar.
func (h Header) WithTask(status string, progress int) Header {
	h.TaskStatus = status
	h.Progress = progress
	return h
}

// WithKeybinds sets the keybinding hints.
func (h Header) WithKeybinds(kb []Keybind) Header {
	h.Keybinds = kb
	return h
}

// WithWidth sets the header width.
func (h Header) WithWidth(w int) Header {
	h.Width = w
	return h
}

// WithClock overrides the clock used for the heartbeat age.
func (h Header) WithClock(now func() time.Time) Header {
	h.now = now
	return h
}

func (h Header) connectionStyle() lipgloss.Style {
	switch h.Connection {
	case "connected":
		return h.theme.StatusRunning
	case "connecting", "reconnecting":
		return h.theme.StatusWarn
	case "failed":
		return h.theme.StatusDead
	}
	return h.theme.StatusPending
}

// Render returns the styled header as a string.
func (h Header) Render() string {
	theme := h.theme

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary).
		Padding(0, 1)
	leftParts := titleStyle.Render(h.Title)

	if h.TaskStatus != "" {
		leftParts = lipgloss.JoinHorizontal(lipgloss.Center, leftParts, "  ",
			lipgloss.NewStyle().Foreground(theme.Text).Render(h.TaskStatus))
	}
	if h.Progress >= 0 {
		bar := NewProgressBar(h.Progress).WithWidth(12).WithStyle(theme.StatusRunning)
		leftParts = lipgloss.JoinHorizontal(lipgloss.Center, leftParts, " ", bar.Render())
	}

	var rightParts string
	if h.Connection != "" {
		conn := h.connectionStyle().Render(styles.ConnectionIcon(h.Connection)) + " " +
			lipgloss.NewStyle().Foreground(theme.Text).Render(h.Connection)
		if h.Connection == "reconnecting" && h.MaxAttempts > 0 {
			conn += theme.TitleMuted.Render(fmt.Sprintf(" %d/%d", h.Attempts, h.MaxAttempts))
		}
		if !h.LastHeartbeat.IsZero() && h.now != nil {
			conn += theme.TitleMuted.Render(fmt.Sprintf("  ♥ %s ago", formatDuration(h.now().Sub(h.LastHeartbeat))))
		}
		rightParts = conn
	}
	if len(h.Keybinds) > 0 {
		kb := RenderKeybinds(h.Keybinds, theme)
		if rightParts != "" {
			rightParts = lipgloss.JoinHorizontal(lipgloss.Center, rightParts, "  ", kb)
		} else {
			rightParts = kb
		}
	}

	spacing := h.Width - lipgloss.Width(leftParts) - lipgloss.Width(rightParts)
	if spacing < 1 {
		spacing = 1
	}
	spacer := lipgloss.NewStyle().Width(spacing).Render("")
	headerLine := lipgloss.JoinHorizontal(lipgloss.Top, leftParts, spacer, rightParts)

	separator := lipgloss.NewStyle().
		Foreground(theme.Muted).
		Render(rule(h.Width))

	return lipgloss.JoinVertical(lipgloss.Left, headerLine, separator)
}

// RenderKeybinds renders a list of keybindings.
func RenderKeybinds(keybinds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(keybinds)*2)
	for i, kb := range keybinds {
		if i > 0 {
			parts = append(parts, theme.TitleMuted.Render(" "))
		}
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]"))
		parts = append(parts, theme.Keybind.Render(" "+kb.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
