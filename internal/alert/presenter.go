package alert

import "github.com/zsprackett/nexus-console/internal/nexus"

type State int

const (
	Hidden State = iota
	Visible
)

func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

// Change describes what Observe or Dismiss did to the banner.
type Change int

const (
	Unchanged Change = iota
	Shown
	Replaced
	Cleared
	Dismissed
	// Restored is Shown for the alert that was just dismissed locally, as
	// reported by a poll that was already in flight.
	Restored
)

func (c Change) String() string {
	switch c {
	case Shown:
		return "shown"
	case Replaced:
		return "replaced"
	case Cleared:
		return "cleared"
	case Dismissed:
		return "dismissed"
	case Restored:
		return "restored"
	default:
		return "unchanged"
	}
}

// Presenter is the single alert banner. A new alert replaces the visible one
// in place; nothing is queued.
type Presenter struct {
	state     State
	current   nexus.Alert
	dismissed nexus.Alert
}

func NewPresenter() *Presenter {
	return &Presenter{}
}

func (p *Presenter) State() State {
	return p.state
}

// Current returns the visible alert, ok is false when hidden.
func (p *Presenter) Current() (nexus.Alert, bool) {
	if p.state != Visible {
		return nexus.Alert{}, false
	}
	return p.current, true
}

// Observe applies the latest_alert field of a poll response.
func (p *Presenter) Observe(a *nexus.Alert) Change {
	if a.Empty() {
		p.dismissed = nexus.Alert{}
		if p.state == Hidden {
			return Unchanged
		}
		p.state = Hidden
		p.current = nexus.Alert{}
		return Cleared
	}
	if p.state == Hidden {
		p.state = Visible
		p.current = *a
		if !p.dismissed.Empty() && sameContent(p.dismissed, *a) {
			return Restored
		}
		p.dismissed = nexus.Alert{}
		return Shown
	}
	if sameContent(p.current, *a) {
		return Unchanged
	}
	p.current = *a
	return Replaced
}

// Dismiss hides the banner locally without waiting for the server.
func (p *Presenter) Dismiss() Change {
	if p.state == Hidden {
		return Unchanged
	}
	p.state = Hidden
	p.dismissed = p.current
	p.current = nexus.Alert{}
	return Dismissed
}

func sameContent(a, b nexus.Alert) bool {
	return a.Priority == b.Priority && a.Message == b.Message && a.Timestamp == b.Timestamp
}
