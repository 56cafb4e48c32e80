package ui

import (
	"testing"
)

func TestRunIconDistinct(t *testing.T) {
	on, onColor := RunIcon(true)
	off, offColor := RunIcon(false)
	if on == off || onColor == offColor {
		t.Error("running and stopped should render differently")
	}
}

func TestPriorityColorCaseInsensitive(t *testing.T) {
	if PriorityColor("HIGH") != ColorError {
		t.Error("expected HIGH to map to error color")
	}
	if PriorityColor("medium") != ColorWarning {
		t.Error("expected medium to map to warning color")
	}
}

func TestPriorityColorUnknownIsMuted(t *testing.T) {
	if PriorityColor("") != ColorTextMuted || PriorityColor("whatever") != ColorTextMuted {
		t.Error("unknown priority should be muted")
	}
}

func TestColorTag(t *testing.T) {
	if got := colorTag(ColorError); got != "[#f38ba8]" {
		t.Errorf("got %q", got)
	}
}
