package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// Status icons
const (
	IconRunning = "●"
	IconStopped = "◻"
	IconFocus   = "◎"
	IconAlert   = "⚠"
)

// RunIcon returns the header icon and color for the capture state.
func RunIcon(running bool) (string, tcell.Color) {
	if running {
		return IconRunning, ColorSuccess
	}
	return IconStopped, ColorTextMuted
}

// PriorityColor maps an alert or analysis priority to a theme color.
func PriorityColor(priority string) tcell.Color {
	switch strings.ToLower(priority) {
	case "critical", "urgent", "high":
		return ColorError
	case "medium":
		return ColorWarning
	case "low":
		return ColorSuccess
	default:
		return ColorTextMuted
	}
}

// colorTag renders c as a tview dynamic color tag.
func colorTag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}
