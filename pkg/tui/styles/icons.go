package styles

// Status icons
const (
	IconSuccess  = "✓"
	IconError    = "✗"
	IconWarning  = "⚠"
	IconInfo     = "ℹ"
	IconRunning  = "▶"
	IconPending  = "○"
	IconSystem   = "●"
	IconGear     = "⚙"
	IconBullet   = "•"
	IconThinking = "…"
	IconPhase    = "◆"
	IconFinding  = "!"
	IconDispatch = "↳"
	IconUser     = "›"
	IconRetry    = "↻"
)

// ConnectionIcon returns the icon for a stream connection state.
func ConnectionIcon(state string) string {
	switch state {
	case "connected":
		return IconSystem
	case "connecting":
		return IconPending
	case "reconnecting":
		return IconRetry
	case "failed":
		return IconError
	default:
		return IconPending
	}
}

// LogTypeIcon returns the icon for an activity log type.
func LogTypeIcon(logType string) string {
	switch logType {
	case "thinking":
		return IconThinking
	case "tool":
		return IconGear
	case "phase":
		return IconPhase
	case "finding":
		return IconFinding
	case "dispatch":
		return IconDispatch
	case "error":
		return IconError
	case "user":
		return IconUser
	case "progress":
		return IconRunning
	default:
		return IconInfo
	}
}

// ToolIcon returns the icon for a tool call status.
func ToolIcon(status string) string {
	switch status {
	case "running":
		return IconRunning
	case "completed":
		return IconSuccess
	case "failed":
		return IconError
	default:
		return IconPending
	}
}

// LogLevelIcon returns the appropriate icon for a log level.
func LogLevelIcon(level string) string {
	switch level {
	case "error", "ERROR":
		return IconError
	case "warn", "WARN", "warning", "WARNING":
		return IconWarning
	case "info", "INFO":
		return IconInfo
	default:
		return IconBullet
	}
}

// AgentStatusIcon returns the icon for an agent node status.
func AgentStatusIcon(status string) string {
	switch status {
	case "running":
		return IconRunning
	case "completed":
		return IconSuccess
	case "failed":
		return IconError
	default:
		return IconPending
	}
}
