package activity

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/zsprackett/nexus-console/internal/nexus"
)

const (
	// MaxLines bounds the rendered activity list.
	MaxLines = 10
	// MaxDescription is the longest description shown after the app name.
	MaxDescription = 30
	timeLayout     = "15:04:05"
)

// Line is one rendered activity row.
type Line struct {
	Time        string `json:"time"`
	AppName     string `json:"app_name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Text joins the app name and description as "App: description", or just the
// app name when no description could be derived.
func (l Line) Text() string {
	if l.Description == "" {
		return l.AppName
	}
	return l.AppName + ": " + l.Description
}

// Render turns records (most recent first) into display lines in loc.
// A record with an undecodable analysis still renders, without description.
func Render(records []nexus.ActivityRecord, loc *time.Location) []Line {
	if loc == nil {
		loc = time.Local
	}
	n := len(records)
	if n > MaxLines {
		n = MaxLines
	}
	lines := make([]Line, 0, n)
	for _, r := range records[:n] {
		lines = append(lines, Line{
			Time:        formatTime(r.Timestamp.Time, loc),
			AppName:     r.AppName,
			Description: Describe(r.Analysis),
			Priority:    r.Analysis.String("priority"),
		})
	}
	return lines
}

// Describe derives a short description from an analysis payload.
func Describe(a nexus.Analysis) string {
	fields, ok := a.Fields()
	if !ok {
		return ""
	}
	for _, key := range []string{"activity", "summary", "intent"} {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return Truncate(strings.TrimSpace(s), MaxDescription)
		}
	}
	return ""
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// PadApp pads or clips name to width terminal cells.
func PadApp(name string, width int) string {
	if runewidth.StringWidth(name) > width {
		return runewidth.Truncate(name, width, "…")
	}
	return runewidth.FillRight(name, width)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.In(loc).Format(timeLayout)
}
