package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

type ActionKind string

const (
	ActionSelectAgent      ActionKind = "select_agent"
	ActionToggleShowAll    ActionKind = "toggle_show_all"
	ActionToggleExpanded   ActionKind = "toggle_expanded"
	ActionToggleAutoScroll ActionKind = "toggle_auto_scroll"
	ActionReconnect        ActionKind = "reconnect"
	ActionResetStream      ActionKind = "reset_stream"
)

type ActionRequest struct {
	Kind    ActionKind `json:"kind"`
	At      time.Time  `json:"at"`
	AgentID string     `json:"agent_id,omitempty"`
	LogID   string     `json:"log_id,omitempty"`
}

func PublishAction(pub message.Publisher, req ActionRequest) error {
	if req.Kind == "" {
		return errors.New("missing action kind")
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	return Publish(pub, TopicUIActions, UITypeActionRequest, req)
}
