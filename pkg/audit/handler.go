package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
)

const (
	maxContentLen = 4000
	maxTitleLen   = 120
)

// EventHandler folds stream events into a Store.
type EventHandler struct {
	store  *Store
	taskID string
}

func NewEventHandler(store *Store, taskID string) *EventHandler {
	return &EventHandler{store: store, taskID: taskID}
}

// Handlers returns the stream hooks that feed the store. Hooks already set
// in next are called after the store has been updated.
func (h *EventHandler) Handlers(next stream.Handlers) stream.Handlers {
	return stream.Handlers{
		OnThinkingStart:     chain(h.thinkingStart, next.OnThinkingStart),
		OnThinkingToken:     chain(h.thinkingToken, next.OnThinkingToken),
		OnThinkingEnd:       chain(h.thinkingEnd, next.OnThinkingEnd),
		OnToolStart:         chain(h.toolStart, next.OnToolStart),
		OnToolEnd:           chain(h.toolEnd, next.OnToolEnd),
		OnNodeStart:         chain(h.nodeStart, next.OnNodeStart),
		OnNodeEnd:           chain(h.nodeEnd, next.OnNodeEnd),
		OnFinding:           chain(h.finding, next.OnFinding),
		OnProgress:          chain(h.progress, next.OnProgress),
		OnComplete:          next.OnComplete,
		OnError:             chain(h.taskError, next.OnError),
		OnHeartbeat:         next.OnHeartbeat,
		OnEvent:             chain(h.event, next.OnEvent),
		OnStateChange:       h.stateChange(next.OnStateChange),
		OnReconnect:         next.OnReconnect,
		OnMaxRetriesReached: next.OnMaxRetriesReached,
	}
}

// Apply folds one event outside of a live stream, e.g. from a capture file.
// It reports whether the event ends the stream.
func (h *EventHandler) Apply(ev protocol.Event) bool {
	return h.Handlers(stream.Handlers{}).Dispatch(ev)
}

func chain(first, then func(protocol.Event)) func(protocol.Event) {
	if then == nil {
		return first
	}
	return func(ev protocol.Event) {
		first(ev)
		then(ev)
	}
}

func (h *EventHandler) stateChange(then func(stream.Status)) func(stream.Status) {
	return func(st stream.Status) {
		h.store.Dispatch(SetConnectionStatus{Status: st.State})
		if then != nil {
			then(st)
		}
	}
}

func (h *EventHandler) agentName(ev protocol.Event) string {
	if ev.AgentName != "" {
		return ev.AgentName
	}
	return h.store.Refs().CurrentAgentName()
}

func (h *EventHandler) addLog(item LogItem) string {
	item.ID = h.store.NewID()
	h.store.Dispatch(AddLog{Item: item})
	return item.ID
}

func (h *EventHandler) thinkingStart(ev protocol.Event) {
	id := h.addLog(LogItem{
		Type:      LogThinking,
		Title:     thinkingOpenTitle,
		AgentName: h.agentName(ev),
	})
	h.store.Refs().SetCurrentThinkingID(id)
}

func (h *EventHandler) thinkingToken(ev protocol.Event) {
	refs := h.store.Refs()
	id := refs.CurrentThinkingID()
	if id == "" {
		h.thinkingStart(ev)
		id = refs.CurrentThinkingID()
	}

	content := ev.Accumulated
	if content == "" {
		if ev.Token == "" {
			return
		}
		prev, _ := h.store.Log(id)
		content = prev.Content + ev.Token
	}
	h.store.Dispatch(UpdateLog{ID: id, Patch: LogPatch{Content: &content}})
}

func (h *EventHandler) thinkingEnd(ev protocol.Event) {
	refs := h.store.Refs()
	id := refs.CurrentThinkingID()
	title := thinkingDoneTitle
	if id == "" {
		if ev.Accumulated != "" {
			h.addLog(LogItem{
				Type:      LogThinking,
				Title:     title,
				Content:   ev.Accumulated,
				AgentName: h.agentName(ev),
			})
		}
		return
	}

	patch := LogPatch{Title: &title}
	if ev.Accumulated != "" {
		content := ev.Accumulated
		patch.Content = &content
	}
	h.store.Dispatch(UpdateLog{ID: id, Patch: patch})
	refs.SetCurrentThinkingID("")
}

func (h *EventHandler) toolStart(ev protocol.Event) {
	name := toolName(ev)
	h.addLog(LogItem{
		Type:      LogTool,
		Title:     name,
		Content:   formatValue(ev.ToolInput),
		AgentName: h.agentName(ev),
		Tool:      &ToolInfo{Name: name, Status: ToolRunning},
	})
}

func (h *EventHandler) toolEnd(ev protocol.Event) {
	h.store.Dispatch(CompleteToolLog{
		ToolName:   toolName(ev),
		Output:     formatValue(ev.ToolOutput),
		DurationMs: toolDuration(ev),
		Failed:     ev.Status == string(ToolFailed) || ev.Error != "",
		AgentName:  h.agentName(ev),
	})
}

func (h *EventHandler) nodeStart(ev protocol.Event) {
	name := nodeLabel(ev)
	if ev.AgentName != "" {
		h.store.Refs().SetCurrentAgentName(ev.AgentName)
	} else if ev.NodeName != "" {
		h.store.Refs().SetCurrentAgentName(ev.NodeName)
	}
	h.addLog(LogItem{
		Type:      LogPhase,
		Title:     "Started: " + name,
		Content:   ev.Message,
		AgentName: h.agentName(ev),
	})
}

func (h *EventHandler) nodeEnd(ev protocol.Event) {
	h.addLog(LogItem{
		Type:      LogPhase,
		Title:     "Completed: " + nodeLabel(ev),
		Content:   ev.Message,
		AgentName: h.agentName(ev),
	})
}

func (h *EventHandler) finding(ev protocol.Event) {
	f, ok := findingFromEvent(ev)
	if !ok {
		return
	}
	if f.AgentName == "" {
		f.AgentName = h.agentName(ev)
	}
	if f.ID != "" && h.store.HasFinding(f.ID) {
		return
	}
	h.store.Dispatch(AddFinding{Finding: f})

	title := f.Title
	if f.Severity != "" {
		title = fmt.Sprintf("[%s] %s", strings.ToUpper(f.Severity), f.Title)
	}
	content := f.Description
	if f.FilePath != "" {
		loc := f.FilePath
		if f.LineStart > 0 {
			loc = fmt.Sprintf("%s:%d", f.FilePath, f.LineStart)
		}
		content = strings.TrimSpace(loc + "\n" + content)
	}
	h.addLog(LogItem{
		Type:      LogFinding,
		Title:     title,
		Content:   content,
		AgentName: f.AgentName,
	})
}

func (h *EventHandler) progress(ev protocol.Event) {
	title := ev.Message
	if ev.Current != nil && ev.Total != nil && *ev.Total > 0 {
		title = fmt.Sprintf("%s (%g/%g)", title, *ev.Current, *ev.Total)
	}
	agent := h.agentName(ev)
	h.store.Dispatch(UpdateOrAddProgressLog{
		ProgressKey: ProgressKey(ev, agent),
		Title:       title,
		AgentName:   agent,
	})
}

func (h *EventHandler) taskError(ev protocol.Event) {
	msg := ev.ErrorMessage()
	h.store.Dispatch(MarkTaskStatus{
		TaskID:       h.taskID,
		Status:       protocol.TaskStatusFailed,
		ErrorMessage: msg,
	})
	h.addLog(LogItem{
		Type:      LogError,
		Title:     "Task failed",
		Content:   msg,
		AgentName: h.agentName(ev),
	})
}

// event handles the families that have no dedicated hook.
func (h *EventHandler) event(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventTaskComplete, protocol.EventTaskEnd:
		status := ev.TaskStatus()
		h.store.Dispatch(MarkTaskStatus{TaskID: h.taskID, Status: status, ErrorMessage: ev.Error})
		typ := LogInfo
		if status == protocol.TaskStatusFailed {
			typ = LogError
		}
		h.addLog(LogItem{
			Type:    typ,
			Title:   "Task " + status,
			Content: ev.Message,
		})
	case protocol.EventInfo, protocol.EventLLMDecision, protocol.EventLLMAction, protocol.EventLLMObservation:
		if ev.Message == "" {
			return
		}
		h.addLog(LogItem{
			Type:      LogInfo,
			Title:     infoTitle(ev),
			Content:   ev.Message,
			AgentName: h.agentName(ev),
		})
	case protocol.EventDispatch:
		h.addLog(LogItem{
			Type:      LogDispatch,
			Title:     firstLine(ev.Message),
			Content:   ev.Message,
			AgentName: h.agentName(ev),
		})
	}
}

func infoTitle(ev protocol.Event) string {
	switch ev.Type {
	case protocol.EventLLMDecision:
		return "Decision"
	case protocol.EventLLMAction:
		return "Action"
	case protocol.EventLLMObservation:
		return "Observation"
	}
	return firstLine(ev.Message)
}

func toolName(ev protocol.Event) string {
	if ev.ToolName != "" {
		return ev.ToolName
	}
	if name := ev.MetadataString("tool_name"); name != "" {
		return name
	}
	return "tool"
}

func toolDuration(ev protocol.Event) int64 {
	if ev.ToolDurationMs > 0 {
		return ev.ToolDurationMs
	}
	for _, key := range []string{"duration_ms", "duration"} {
		if v, ok := ev.Fields[key].(float64); ok && v > 0 {
			return int64(v)
		}
		if v, ok := ev.Metadata[key].(float64); ok && v > 0 {
			return int64(v)
		}
	}
	return 0
}

func nodeLabel(ev protocol.Event) string {
	for _, s := range []string{ev.NodeName, ev.AgentName, ev.NodeType, ev.NodeID} {
		if s != "" {
			return s
		}
	}
	return "node"
}

// findingFromEvent accepts both a nested `finding` object and findings whose
// fields are sent at the top level of the event.
func findingFromEvent(ev protocol.Event) (protocol.Finding, bool) {
	var f protocol.Finding
	if ev.Finding != nil {
		f = *ev.Finding
	} else if len(ev.Fields) > 0 {
		b, err := json.Marshal(ev.Fields)
		if err == nil {
			_ = json.Unmarshal(b, &f)
		}
	}
	if f.ID == "" {
		f.ID = ev.FindingID
	}
	if f.Title == "" {
		f.Title = ev.Message
	}
	if ev.Type == protocol.EventFindingVerified {
		f.IsVerified = true
	}
	return f, f.ID != "" || f.Title != ""
}

// ProgressKey returns the upsert key of a progress event: the explicit
// progress_key when present, otherwise the message with its numbers
// stripped, so "Indexed 10/200 files" and "Indexed 20/200 files" share a
// line.
func ProgressKey(ev protocol.Event, agent string) string {
	if ev.ProgressKey != "" {
		return ev.ProgressKey
	}
	if k := ev.MetadataString("progress_key"); k != "" {
		return k
	}
	var b strings.Builder
	space := false
	for _, r := range ev.Message {
		if unicode.IsDigit(r) || strings.ContainsRune("/%.,()", r) || unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	key := b.String()
	if key == "" {
		key = "progress"
	}
	if agent != "" {
		key = agent + ":" + key
	}
	return key
}

func formatValue(v any) string {
	var s string
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		s = v
	case map[string]any:
		if len(v) == 0 {
			return ""
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		s = string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		s = string(b)
	}
	return truncate(s, maxContentLen)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(s, maxTitleLen)
}

// truncate cuts s to at most n bytes on a rune boundary and marks the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
