package events

import "time"

// Event types emitted by the monitor.
const (
	TypeRunningChanged    = "running_changed"
	TypeFocusChanged      = "focus_changed"
	TypeAlertShown        = "alert_shown"
	TypeAlertReplaced     = "alert_replaced"
	TypeAlertCleared      = "alert_cleared"
	TypeAlertDismissed    = "alert_dismissed"
	TypeActivitiesUpdated = "activities_updated"
	TypeInsightsUpdated   = "insights_updated"
	TypeActionFailed      = "action_failed"
	TypeSnapshot          = "snapshot"
)

// Event is a real-time update pushed to mirror clients.
type Event struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Value    *bool     `json:"value,omitempty"`
	Priority string    `json:"priority,omitempty"`
	Message  string    `json:"message,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// Bool returns a pointer for Event.Value.
func Bool(b bool) *bool {
	return &b
}

// Broadcaster sends events to connected mirror clients.
// A nil Broadcaster is safe to use -- Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}
