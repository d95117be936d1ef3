package tui

const (
	TopicAuditEvents = "audit.events"
	TopicUIMessages  = "audit.ui.msgs"
	TopicUIActions   = "audit.ui.actions"
)

const (
	DomainTypeStreamEvent     = "stream.event"
	DomainTypeStreamState     = "stream.state"
	DomainTypeStreamReconnect = "stream.reconnect"
	DomainTypeStreamGaveUp    = "stream.gave_up"
	DomainTypeActionLog       = "action.log"
)

const (
	UITypeStoreChanged  = "tui.store.changed"
	UITypeConnection    = "tui.connection"
	UITypeNotice        = "tui.notice"
	UITypeActionRequest = "tui.action.request"
)
