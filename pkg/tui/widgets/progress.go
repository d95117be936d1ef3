package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders "████░░░░  40%".
type ProgressBar struct {
	percent int
	width   int
	style   lipgloss.Style
}

// NewProgressBar clamps percent to 0..100.
func NewProgressBar(percent int) ProgressBar {
	return ProgressBar{percent: min(100, max(0, percent)), width: 20}
}

// PercentOf converts a done/total pair into a clamped percentage. A zero
// total yields 0.
func PercentOf(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}

// WithWidth sets the bar width, excluding the percentage text. Minimum 5.
func (p ProgressBar) WithWidth(width int) ProgressBar {
	p.width = max(5, width)
	return p
}

func (p ProgressBar) WithStyle(style lipgloss.Style) ProgressBar {
	p.style = style
	return p
}

func (p ProgressBar) Render() string {
	filled := p.width * p.percent / 100
	return fmt.Sprintf("%s%s %3d%%",
		p.style.Render(strings.Repeat("█", filled)),
		strings.Repeat("░", p.width-filled),
		p.percent)
}
