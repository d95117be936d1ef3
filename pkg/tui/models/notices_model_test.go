package models

import (
	"testing"
	"time"

	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/stretchr/testify/require"
)

func noticeAt(level tui.LogLevel, text string) tui.Notice {
	return tui.Notice{At: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), Source: "stream", Level: level, Text: text}
}

func TestNoticesModel_CollapsesRepeats(t *testing.T) {
	m := NewNoticesModel().WithSize(80, 10)
	m = m.Append(noticeAt(tui.LogLevelWarn, "connection lost"))
	m = m.Append(noticeAt(tui.LogLevelWarn, "connection lost"))
	m = m.Append(noticeAt(tui.LogLevelWarn, "connection lost"))
	m = m.Append(noticeAt(tui.LogLevelInfo, "connected"))

	require.Equal(t, 4, m.Len())
	require.Len(t, m.Visible(), 2)
	v := m.View(true)
	require.Contains(t, v, "Notices (4)")
	require.Contains(t, v, "×3")
}

func TestNoticesModel_LevelFilterCycles(t *testing.T) {
	m := NewNoticesModel().WithSize(80, 10)
	m = m.Append(noticeAt(tui.LogLevelDebug, "d"))
	m = m.Append(noticeAt(tui.LogLevelInfo, "i"))
	m = m.Append(noticeAt(tui.LogLevelWarn, "w"))
	m = m.Append(noticeAt(tui.LogLevelError, "e"))
	m = m.Append(tui.Notice{Text: "unleveled"})
	require.Len(t, m.Visible(), 5)

	texts := func() []string {
		var out []string
		for _, n := range m.Visible() {
			out = append(out, n.Text)
		}
		return out
	}

	m, _ = m.Update(key("l"))
	require.Equal(t, []string{"i", "w", "e", "unleveled"}, texts())
	m, _ = m.Update(key("l"))
	require.Equal(t, []string{"w", "e"}, texts())
	require.Contains(t, m.View(false), "≥warn")
	m, _ = m.Update(key("l"))
	require.Equal(t, []string{"e"}, texts())
	m, _ = m.Update(key("l"))
	require.Len(t, m.Visible(), 5)
}

func TestNoticesModel_SearchAndClear(t *testing.T) {
	m := NewNoticesModel().WithSize(80, 10)
	m = m.Append(noticeAt(tui.LogLevelInfo, "connected"))
	m = m.Append(noticeAt(tui.LogLevelError, "failed: 401"))

	m, _ = m.Update(key("/"))
	require.True(t, m.Searching())
	for _, r := range "401" {
		m, _ = m.Update(key(string(r)))
	}
	m, _ = m.Update(key("enter"))
	require.False(t, m.Searching())
	require.Len(t, m.Visible(), 1)

	m, _ = m.Update(key("c"))
	require.Equal(t, 0, m.Len())
	require.Contains(t, m.View(true), "(no notices)")
}

func TestNoticesModel_Bounded(t *testing.T) {
	m := NewNoticesModel()
	for i := 0; i < maxNotices+10; i++ {
		m = m.Append(tui.Notice{Text: string(rune('a' + i%26)), Source: "x"})
	}
	require.Len(t, m.Visible(), maxNotices)
}
