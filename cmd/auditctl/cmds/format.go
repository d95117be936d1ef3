package cmds

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/tui/styles"
)

func formatLogItem(l audit.LogItem, verbose bool) string {
	icon := styles.LogTypeIcon(string(l.Type))
	title := l.Title
	if l.Tool != nil {
		icon = styles.ToolIcon(string(l.Tool.Status))
		if l.Tool.DurationMs > 0 {
			title = fmt.Sprintf("%s (%dms)", title, l.Tool.DurationMs)
		}
	}

	var b strings.Builder
	if !l.Time.IsZero() {
		b.WriteString(l.Time.Format("15:04:05"))
		b.WriteString(" ")
	}
	b.WriteString(icon)
	b.WriteString(" ")
	if l.AgentName != "" {
		b.WriteString("[" + l.AgentName + "] ")
	}
	b.WriteString(title)

	if verbose && strings.TrimSpace(l.Content) != "" {
		for _, line := range strings.Split(strings.TrimRight(l.Content, "\n"), "\n") {
			b.WriteString("\n    ")
			b.WriteString(line)
		}
	}
	return b.String()
}

func formatFinding(f protocol.Finding) string {
	loc := f.FilePath
	if loc != "" && f.LineStart > 0 {
		loc = fmt.Sprintf("%s:%d", loc, f.LineStart)
	}
	s := fmt.Sprintf("[%s] %s", strings.ToUpper(f.Severity), f.Title)
	if loc != "" {
		s += " (" + loc + ")"
	}
	if f.IsVerified {
		s += " verified"
	}
	return s
}

// eventJSON renders an event as its field bag plus the event type.
func eventJSON(ev protocol.Event) ([]byte, error) {
	out := make(map[string]any, len(ev.Fields)+1)
	for k, v := range ev.Fields {
		out[k] = v
	}
	out["type"] = ev.Type
	return json.Marshal(out)
}

// logPrinter prints each log once, when it first appears, and prints tool
// logs again when they stop running.
type logPrinter struct {
	verbose bool
	printed map[string]audit.ToolStatus
	write   func(string)
}

func newLogPrinter(verbose bool, write func(string)) *logPrinter {
	return &logPrinter{verbose: verbose, printed: map[string]audit.ToolStatus{}, write: write}
}

func (p *logPrinter) observe(logs []audit.LogItem) {
	for _, l := range logs {
		status := audit.ToolStatus("")
		if l.Tool != nil {
			status = l.Tool.Status
		}
		prev, seen := p.printed[l.ID]
		if seen && (l.Tool == nil || prev == status) {
			continue
		}
		if l.ThinkingOpen() {
			continue
		}
		p.printed[l.ID] = status
		p.write(formatLogItem(l, p.verbose))
	}
}
