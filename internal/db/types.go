package db

import "time"

// Journal event types. The monitor writes these; nothing reads them back into
// dashboard state.
const (
	EventRunningChanged = "running_changed"
	EventFocusChanged   = "focus_changed"
	EventAlertShown     = "alert_shown"
	EventAlertDismissed = "alert_dismissed"
	EventActionFailed   = "action_failed"
)

type Event struct {
	ID        int64
	Ts        time.Time
	EventType string
	Detail    string
}

type QueryRecord struct {
	ID       int64
	Ts       time.Time
	Question string
	Answer   string
}
