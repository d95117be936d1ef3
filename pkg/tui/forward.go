package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
)

// Sender is the part of *tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

func RegisterUIForwarder(bus *Bus, p Sender) {
	bus.AddHandler("audit-ui-forward", TopicUIMessages, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := parseEnvelope(msg)
		if err != nil {
			return err
		}

		switch env.Type {
		case UITypeStoreChanged:
			var ev StoreChanged
			if err := env.Decode(&ev); err != nil {
				return err
			}
			p.Send(StoreChangedMsg{Rev: ev.Rev})
		case UITypeConnection:
			var c Connection
			if err := env.Decode(&c); err != nil {
				return err
			}
			p.Send(ConnectionMsg{Connection: c})
		case UITypeNotice:
			var n Notice
			if err := env.Decode(&n); err != nil {
				return err
			}
			p.Send(NoticeMsg{Notice: n})
		}
		return nil
	})
}
