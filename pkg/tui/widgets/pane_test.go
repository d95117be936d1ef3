package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func TestPane_TitleCountAndHints(t *testing.T) {
	out := NewPane("Findings").WithCount(3).WithHints("[enter] details").WithSize(40, 5).Render()
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[1], "Findings (3)")
	require.Contains(t, lines[1], "[enter] details")
	for _, l := range lines {
		require.Equal(t, 40, lipgloss.Width(l))
	}
}

func TestPane_ClipsBodyToHeight(t *testing.T) {
	body := strings.Join([]string{"one", "two", "three", "four", "five"}, "\n")
	out := NewPane("Activity").WithBody(body).WithSize(30, 5).Render()
	require.Contains(t, out, "two")
	require.NotContains(t, out, "three")
	require.Len(t, strings.Split(out, "\n"), 5)
}

func TestPane_DropsHintsWhenNarrow(t *testing.T) {
	out := NewPane("Agents").WithCount(12).WithHints("[enter] select").WithSize(16, 4).Render()
	require.Contains(t, out, "Agents (12)")
	require.NotContains(t, out, "select")
}

func TestProgressBar(t *testing.T) {
	require.Equal(t, "█████░░░░░  50%", NewProgressBar(50).WithWidth(10).Render())
	require.Equal(t, "░░░░░   0%", NewProgressBar(-3).WithWidth(1).Render())
	require.Equal(t, 40, PercentOf(4, 10))
	require.Equal(t, 100, PercentOf(12, 10))
	require.Equal(t, 0, PercentOf(1, 0))
}
