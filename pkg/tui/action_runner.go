package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/pkg/errors"
)

// Connector is the part of *stream.Client the action runner drives.
type Connector interface {
	Connect()
	Disconnect()
	ResetConnection()
}

// RegisterUIActionRunner applies UI action requests to the store and the
// stream client. gen must be the generation shared with StreamHooks and
// RegisterStoreApplier.
func RegisterUIActionRunner(bus *Bus, store *audit.Store, conn Connector, gen *Generation) {
	bus.AddHandler("audit-ui-actions", TopicUIActions, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := parseEnvelope(msg)
		if err != nil {
			_ = publishActionLog(bus.Publisher, LogLevelWarn, "action: bad envelope (unmarshal failed)")
			return nil
		}
		if env.Type != UITypeActionRequest {
			return nil
		}

		var req ActionRequest
		if err := env.Decode(&req); err != nil {
			_ = publishActionLog(bus.Publisher, LogLevelWarn, "action: bad request (unmarshal failed)")
			return nil
		}
		if err := runAction(store, conn, gen, req); err != nil {
			_ = publishActionLog(bus.Publisher, LogLevelError, "action failed: "+string(req.Kind)+": "+err.Error())
			return nil
		}
		if changed := storeChangedAfter(req.Kind); changed {
			return Publish(bus.Publisher, TopicUIMessages, UITypeStoreChanged, StoreChanged{Rev: store.Snapshot().Revision()})
		}
		return publishActionLog(bus.Publisher, LogLevelInfo, "action ok: "+string(req.Kind))
	})
}

func runAction(store *audit.Store, conn Connector, gen *Generation, req ActionRequest) error {
	switch req.Kind {
	case ActionSelectAgent:
		store.Dispatch(audit.SelectAgent{AgentID: req.AgentID})
	case ActionToggleShowAll:
		store.Dispatch(audit.ToggleShowAllLogs{})
	case ActionToggleExpanded:
		if req.LogID == "" {
			return errors.New("missing log id")
		}
		store.Dispatch(audit.ToggleLogExpanded{ID: req.LogID})
	case ActionToggleAutoScroll:
		store.Dispatch(audit.SetAutoScroll{Enabled: !store.Snapshot().AutoScroll})
	case ActionReconnect:
		if conn == nil {
			return errors.New("no stream client")
		}
		conn.Connect()
	case ActionResetStream:
		if conn == nil {
			return errors.New("no stream client")
		}
		// Stop the old connection before resetting, then fence off whatever
		// it already queued on the bus.
		conn.Disconnect()
		gen.Advance(func() {
			prev := store.Snapshot().Task
			store.Dispatch(audit.Reset{})
			if prev != nil {
				store.Dispatch(audit.SetTask{Task: &audit.AgentTask{ID: prev.ID, ProjectID: prev.ProjectID, Name: prev.Name, Status: protocol.TaskStatusRunning}})
			}
		})
		conn.ResetConnection()
	default:
		return errors.Errorf("unknown action: %s", req.Kind)
	}
	return nil
}

func storeChangedAfter(kind ActionKind) bool {
	switch kind {
	case ActionReconnect:
		return false
	}
	return true
}

func publishActionLog(pub message.Publisher, level LogLevel, text string) error {
	return Publish(pub, TopicAuditEvents, DomainTypeActionLog, Notice{At: time.Now(), Source: "action", Level: level, Text: text})
}
