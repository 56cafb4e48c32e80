package nexus

import (
	"bytes"
	"encoding/json"
	"time"
)

// RunState is the pair of server-owned flags the dashboard mirrors.
type RunState struct {
	Running bool `json:"is_running"`
	Focus   bool `json:"is_focus_mode"`
}

type StatusResponse struct {
	IsRunning     bool   `json:"is_running"`
	IsFocusMode   bool   `json:"is_focus_mode"`
	ActivityCount int    `json:"activity_count"`
	LatestAlert   *Alert `json:"latest_alert,omitempty"`
}

// RunState extracts the reconcilable flags from a status response.
func (s StatusResponse) RunState() RunState {
	return RunState{Running: s.IsRunning, Focus: s.IsFocusMode}
}

type Alert struct {
	Priority  string `json:"priority"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Empty reports whether the alert carries nothing worth showing.
func (a *Alert) Empty() bool {
	return a == nil || (a.Message == "" && a.Priority == "")
}

type ActivityRecord struct {
	ID          string    `json:"id,omitempty"`
	Timestamp   Timestamp `json:"timestamp"`
	AppName     string    `json:"app_name"`
	WindowTitle string    `json:"window_title,omitempty"`
	Analysis    Analysis  `json:"analysis,omitzero"`
}

// Timestamp accepts RFC3339 as well as the naive ISO forms Python services
// emit. Unparseable values decode to the zero time instead of failing.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	t.Time = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseTimestamp returns the zero time when no layout matches. Naive
// timestamps are read in local time.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

type ActivitiesResponse struct {
	Activities []ActivityRecord `json:"activities"`
}

type Synthesis struct {
	Insights []string `json:"insights"`
}

type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	Response string `json:"response"`
}

type ActionResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	IsFocusMode bool   `json:"is_focus_mode"`
}

// Analysis holds the per-activity analysis payload exactly as received.
//
// The canonical wire form is a JSON object. Older services store the analysis
// as a TEXT column and send it as a JSON string containing encoded JSON; that
// form is unwrapped by Fields. Anything else is kept as opaque text.
// Unmarshalling never fails so one bad record cannot break a whole response.
type Analysis struct {
	raw json.RawMessage
}

// NewAnalysis builds an Analysis from structured fields.
func NewAnalysis(fields map[string]any) Analysis {
	b, err := json.Marshal(fields)
	if err != nil {
		return Analysis{}
	}
	return Analysis{raw: b}
}

// NewEncodedAnalysis builds an Analysis in the legacy string-encoded form.
func NewEncodedAnalysis(encoded string) Analysis {
	b, _ := json.Marshal(encoded)
	return Analysis{raw: b}
}

func (a *Analysis) UnmarshalJSON(b []byte) error {
	a.raw = append(a.raw[:0], b...)
	return nil
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	if len(a.raw) == 0 {
		return []byte("null"), nil
	}
	return a.raw, nil
}

// IsZero lets encoding/json omit an absent analysis.
func (a Analysis) IsZero() bool {
	trimmed := bytes.TrimSpace(a.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Fields returns the analysis as a structured map. ok is false when the
// payload is absent, opaque text, or an encoded string that does not decode.
func (a Analysis) Fields() (map[string]any, bool) {
	if a.IsZero() {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(a.raw, &fields); err == nil {
		return fields, fields != nil
	}
	var encoded string
	if err := json.Unmarshal(a.raw, &encoded); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(encoded), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// Text returns the payload as plain text, unwrapping a JSON string if needed.
func (a Analysis) Text() string {
	if a.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(a.raw, &s); err == nil {
		return s
	}
	return string(a.raw)
}

// String returns the named string field, or "" when missing.
func (a Analysis) String(key string) string {
	fields, ok := a.Fields()
	if !ok {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
