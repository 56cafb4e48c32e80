package reconcile

import (
	"fmt"
	"time"

	"github.com/zsprackett/nexus-console/internal/nexus"
)

type Field string

const (
	FieldRunning Field = "running"
	FieldFocus   Field = "focus"
)

// Transition is a single changed field between two polls.
type Transition struct {
	Field Field
	From  bool
	To    bool
}

// Reconciler caches the last applied run state and the local start time used
// for the uptime display. It is owned by a single goroutine.
type Reconciler struct {
	state     nexus.RunState
	startedAt time.Time
	now       func() time.Time
}

func New() *Reconciler {
	return &Reconciler{now: time.Now}
}

// SetNow replaces the time source. Used in tests only.
func (r *Reconciler) SetNow(fn func() time.Time) {
	r.now = fn
}

// State returns the cached run state.
func (r *Reconciler) State() nexus.RunState {
	return r.state
}

// StartedAt returns the recorded start time, zero when not running.
func (r *Reconciler) StartedAt() time.Time {
	return r.startedAt
}

// Apply caches next and returns one Transition per field that changed.
// Unchanged fields produce nothing.
func (r *Reconciler) Apply(next nexus.RunState) []Transition {
	var out []Transition
	if next.Running != r.state.Running {
		out = append(out, Transition{Field: FieldRunning, From: r.state.Running, To: next.Running})
		if next.Running {
			if r.startedAt.IsZero() {
				r.startedAt = r.now()
			}
		} else {
			r.startedAt = time.Time{}
		}
	}
	if next.Focus != r.state.Focus {
		out = append(out, Transition{Field: FieldFocus, From: r.state.Focus, To: next.Focus})
	}
	r.state = next
	return out
}

// Uptime reports time since the recorded start. ok is false when stopped.
func (r *Reconciler) Uptime() (time.Duration, bool) {
	if r.startedAt.IsZero() {
		return 0, false
	}
	d := r.now().Sub(r.startedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// UptimeText is the display form of Uptime, "--" when stopped.
func (r *Reconciler) UptimeText() string {
	d, ok := r.Uptime()
	if !ok {
		return "--"
	}
	return FormatUptime(d)
}

// FormatUptime renders d as "1h 1m 1s".
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
