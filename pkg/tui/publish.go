package tui

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
	"github.com/rs/zerolog/log"
)

// StreamHooks returns client hooks that publish every event and status
// change on TopicAuditEvents, stamping events with gen's current value.
// Publishing failures are logged and dropped.
func StreamHooks(pub message.Publisher, taskID string, gen *Generation) stream.Handlers {
	publish := func(typ string, payload any) {
		if err := Publish(pub, TopicAuditEvents, typ, payload); err != nil {
			log.Warn().Err(err).Str("type", typ).Msg("bus publish failed")
		}
	}
	return stream.Handlers{
		OnEvent: func(ev protocol.Event) {
			publish(DomainTypeStreamEvent, StreamEvent{
				TaskID:     taskID,
				Generation: gen.Current(),
				At:         time.Now(),
				Type:       ev.Type,
				Data:       ev.Fields,
			})
		},
		OnStateChange: func(st stream.Status) {
			publish(DomainTypeStreamState, ConnectionFromStatus(st))
		},
		OnReconnect: func(attempt int, delay time.Duration) {
			publish(DomainTypeStreamReconnect, Reconnect{At: time.Now(), Attempt: attempt, Delay: delay})
		},
		OnMaxRetriesReached: func() {
			publish(DomainTypeStreamGaveUp, Notice{
				At:     time.Now(),
				Source: "stream",
				Level:  LogLevelError,
				Text:   fmt.Sprintf("gave up reconnecting to task %s", taskID),
			})
		},
	}
}

func publishNotice(pub message.Publisher, level LogLevel, source, text string) error {
	return Publish(pub, TopicUIMessages, UITypeNotice, Notice{At: time.Now(), Source: source, Level: level, Text: text})
}
