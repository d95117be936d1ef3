package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParserStats counts what the parser saw since it was created or reset.
type ParserStats struct {
	FramesParsed     int64
	DataLinesDropped int64
	BytesBuffered    int
}

// FrameParser turns an arbitrarily chunked byte stream into events.
//
// Frames are blocks of lines terminated by a blank line. Bytes after the last
// complete line, and lines of a frame whose terminating blank line has not
// arrived yet, stay buffered until the next Feed; a partial frame is never
// returned.
type FrameParser struct {
	buf     []byte
	pending frame
	stats   ParserStats
}

type frame struct {
	eventType string
	id        string
	data      map[string]any
	lines     int
}

func NewFrameParser() *FrameParser {
	return &FrameParser{}
}

// Feed appends chunk to the buffer and returns every event completed by it,
// in stream order.
func (p *FrameParser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)

	var out []Event
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := p.buf[:idx]
		p.buf = p.buf[idx+1:]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}

		if len(line) == 0 {
			if ev, ok := p.finishFrame(); ok {
				out = append(out, ev)
			}
			continue
		}
		p.consumeLine(string(line))
	}

	// Keep the retained tail compact so long streams do not pin old chunks.
	if len(p.buf) == 0 {
		p.buf = nil
	} else {
		p.buf = append([]byte(nil), p.buf...)
	}
	return out
}

// Reset drops buffered bytes and any half-built frame. Stats are kept.
func (p *FrameParser) Reset() {
	p.buf = nil
	p.pending = frame{}
}

func (p *FrameParser) Stats() ParserStats {
	st := p.stats
	st.BytesBuffered = len(p.buf)
	return st
}

func (p *FrameParser) consumeLine(line string) {
	if strings.HasPrefix(line, ":") {
		// comment / keepalive
		return
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		p.pending.eventType = strings.TrimSpace(value)
		p.pending.lines++
	case "id":
		p.pending.id = strings.TrimSpace(value)
		p.pending.lines++
	case "data":
		p.pending.lines++
		var obj map[string]any
		if err := json.Unmarshal([]byte(value), &obj); err != nil || obj == nil {
			p.stats.DataLinesDropped++
			log.Debug().Err(err).Str("line", truncate(value, 120)).Msg("dropping malformed data line")
			return
		}
		if p.pending.data == nil {
			p.pending.data = map[string]any{}
		}
		for k, v := range obj {
			p.pending.data[k] = v
		}
	default:
		// retry: and unknown fields carry nothing we use
	}
}

func (p *FrameParser) finishFrame() (Event, bool) {
	f := p.pending
	p.pending = frame{}
	if f.lines == 0 {
		return Event{}, false
	}
	if f.eventType == "" && f.data == nil {
		return Event{}, false
	}
	p.stats.FramesParsed++
	return buildEvent(f), true
}

func buildEvent(f frame) Event {
	bag := f.data
	if bag == nil {
		bag = map[string]any{}
	}
	ev := decodeEvent(bag)
	ev.Fields = bag

	switch {
	case f.eventType != "":
		ev.Type = EventType(f.eventType)
	case ev.Type == "":
		ev.Type = EventMessage
	}
	if ev.Sequence == 0 && f.id != "" {
		if n, err := strconv.ParseInt(f.id, 10, 64); err == nil {
			ev.Sequence = n
		}
	}
	return Normalize(ev)
}

// EventFromFields rebuilds an event from its type and field bag, for bags
// that crossed a serialization boundary (Fields is not marshalled with the
// event).
func EventFromFields(t EventType, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	ev := decodeEvent(fields)
	ev.Fields = fields
	if t != "" {
		ev.Type = t
	} else if ev.Type == "" {
		ev.Type = EventMessage
	}
	return Normalize(ev)
}

// decodeEvent fills the typed view of a data bag. json.Unmarshal skips a
// value of the wrong type and keeps decoding the rest, so one bad key only
// loses that key.
func decodeEvent(bag map[string]any) Event {
	var ev Event
	b, err := json.Marshal(bag)
	if err != nil {
		return ev
	}
	_ = json.Unmarshal(b, &ev)
	return ev
}

// Normalize hoists metadata.agent_name to the top level when the event has
// no agent_name of its own.
func Normalize(ev Event) Event {
	if ev.AgentName == "" {
		if name := ev.MetadataString("agent_name"); name != "" {
			ev.AgentName = name
			if ev.Fields != nil {
				if _, ok := ev.Fields["agent_name"]; !ok {
					ev.Fields["agent_name"] = name
				}
			}
		}
	}
	return ev
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
