package tui

type StoreChangedMsg struct {
	Rev uint64
}

type ConnectionMsg struct {
	Connection Connection
}

type NoticeMsg struct {
	Notice Notice
}

// ActionRequestMsg is returned by pane models; the root model publishes it
// on TopicUIActions.
type ActionRequestMsg struct {
	Request ActionRequest
}
