package tui

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/stream"
	"github.com/rs/zerolog/log"
)

// RegisterStoreApplier consumes TopicAuditEvents, folds the events into the
// store through h and republishes what the UI needs on TopicUIMessages.
// Stream events from an earlier generation than gen's are dropped.
func RegisterStoreApplier(bus *Bus, store *audit.Store, h *audit.EventHandler, gen *Generation) {
	bus.AddHandler("audit-domain-to-store", TopicAuditEvents, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := parseEnvelope(msg)
		if err != nil {
			return err
		}

		switch env.Type {
		case DomainTypeStreamEvent:
			var ev StreamEvent
			if err := env.Decode(&ev); err != nil {
				return err
			}
			before := store.Snapshot().Revision()
			if !gen.Apply(ev.Generation, func() { h.Apply(ev.Event()) }) {
				log.Debug().Uint64("generation", ev.Generation).Str("type", string(ev.Type)).Msg("dropping stale stream event")
				return nil
			}
			if rev := store.Snapshot().Revision(); rev != before {
				return Publish(bus.Publisher, TopicUIMessages, UITypeStoreChanged, StoreChanged{Rev: rev})
			}
			return nil

		case DomainTypeStreamState:
			var c Connection
			if err := env.Decode(&c); err != nil {
				return err
			}
			store.Dispatch(audit.SetConnectionStatus{Status: c.State})
			if err := Publish(bus.Publisher, TopicUIMessages, UITypeConnection, c); err != nil {
				return err
			}
			switch c.State {
			case stream.StateConnected:
				return publishNotice(bus.Publisher, LogLevelInfo, "stream", "connected")
			case stream.StateFailed:
				return publishNotice(bus.Publisher, LogLevelError, "stream", "failed: "+c.Error)
			}
			return nil

		case DomainTypeStreamReconnect:
			var r Reconnect
			if err := env.Decode(&r); err != nil {
				return err
			}
			return publishNotice(bus.Publisher, LogLevelWarn, "stream",
				fmt.Sprintf("connection lost, retry %d in %s", r.Attempt, r.Delay.Round(100*time.Millisecond)))

		case DomainTypeStreamGaveUp, DomainTypeActionLog:
			var n Notice
			if err := env.Decode(&n); err != nil {
				return err
			}
			return Publish(bus.Publisher, TopicUIMessages, UITypeNotice, n)

		default:
			return nil
		}
	})
}
