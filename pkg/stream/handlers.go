package stream

import (
	"time"

	"github.com/go-go-golems/auditctl/pkg/protocol"
)

// Handlers is the set of optional hooks a Client invokes. Event hooks run on
// the client's reader goroutine, one event at a time, in stream order; a slow
// hook slows the stream down.
//
// OnEvent sees every event, including unknown types, before the specific
// hook for that type.
type Handlers struct {
	OnThinkingStart func(protocol.Event)
	OnThinkingToken func(protocol.Event)
	OnThinkingEnd   func(protocol.Event)
	OnToolStart     func(protocol.Event)
	OnToolEnd       func(protocol.Event)
	OnNodeStart     func(protocol.Event)
	OnNodeEnd       func(protocol.Event)
	OnFinding       func(protocol.Event)
	OnProgress      func(protocol.Event)
	// OnComplete only fires for completions that are neither cancelled nor
	// failed. Those are still visible through OnEvent.
	OnComplete  func(protocol.Event)
	OnError     func(protocol.Event)
	OnHeartbeat func(protocol.Event)
	OnEvent     func(protocol.Event)

	// OnStateChange receives every observable status change in order. It is
	// called with an internal lock held and must not call back into the
	// client synchronously.
	OnStateChange       func(Status)
	OnReconnect         func(attempt int, delay time.Duration)
	OnMaxRetriesReached func()
}

// Dispatch routes ev to its hooks and reports whether ev ends the stream. The
// client calls it for every live event; it is exported so captured streams
// can be folded through the same hooks.
func (h Handlers) Dispatch(ev protocol.Event) bool {
	call(h.OnEvent, ev)

	switch t := ev.Type; {
	case t == protocol.EventThinkingStart:
		call(h.OnThinkingStart, ev)
	case t == protocol.EventThinkingToken:
		call(h.OnThinkingToken, ev)
	case t == protocol.EventThinkingEnd:
		call(h.OnThinkingEnd, ev)
	case t.IsToolStart():
		call(h.OnToolStart, ev)
	case t.IsToolEnd():
		call(h.OnToolEnd, ev)
	case t == protocol.EventNodeStart:
		call(h.OnNodeStart, ev)
	case t == protocol.EventNodeEnd:
		call(h.OnNodeEnd, ev)
	case t.IsFinding():
		call(h.OnFinding, ev)
	case t == protocol.EventProgress:
		call(h.OnProgress, ev)
	case t == protocol.EventHeartbeat:
		call(h.OnHeartbeat, ev)
	case t.IsCompletion():
		if ev.IsSuccessfulCompletion() {
			call(h.OnComplete, ev)
		}
		return true
	case t.IsError():
		call(h.OnError, ev)
		return true
	case t == protocol.EventDone:
		return true
	}
	return false
}

func call(fn func(protocol.Event), ev protocol.Event) {
	if fn != nil {
		fn(ev)
	}
}
