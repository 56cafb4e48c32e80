package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/zsprackett/nexus-console/internal/activity"
	"github.com/zsprackett/nexus-console/internal/alert"
	"github.com/zsprackett/nexus-console/internal/db"
	"github.com/zsprackett/nexus-console/internal/events"
	"github.com/zsprackett/nexus-console/internal/nexus"
	"github.com/zsprackett/nexus-console/internal/reconcile"
	"github.com/zsprackett/nexus-console/internal/scheduler"
)

// Client is the subset of the status service the monitor drives.
type Client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (nexus.StatusResponse, error)
	Query(ctx context.Context, query string) (string, error)
	Activities(ctx context.Context) ([]nexus.ActivityRecord, error)
	ToggleFocus(ctx context.Context) (bool, error)
	DismissAlert(ctx context.Context) error
	Synthesis(ctx context.Context) (nexus.Synthesis, error)
}

type Notifier interface {
	Notify(a nexus.Alert)
}

// Journal records transitions for later inspection. It never feeds the view.
type Journal interface {
	InsertEvent(eventType, detail string) error
	InsertQuery(question, answer string) error
	Touch() error
}

type Config struct {
	StatusInterval    time.Duration
	SynthesisInterval time.Duration
	UptimeInterval    time.Duration
	RequestTimeout    time.Duration
	Location          *time.Location
}

// Deps are the optional collaborators. Nil fields are skipped.
type Deps struct {
	OnUpdate    OnUpdate
	Notifier    Notifier
	Broadcaster events.Broadcaster
	Journal     Journal
}

// OnUpdate receives a fresh View after every change. It runs on the monitor
// goroutine and must not block.
type OnUpdate func(View)

// View is everything the dashboard shows. It is derived only from the last
// successful responses; slices are replaced, never mutated, once published.
type View struct {
	Running       bool             `json:"is_running"`
	Focus         bool             `json:"is_focus_mode"`
	Uptime        string           `json:"uptime"`
	ActivityCount int              `json:"activity_count"`
	Alert         *nexus.Alert     `json:"alert,omitempty"`
	Activities    []activity.Line  `json:"activities"`
	Chart         []activity.Point `json:"chart"`
	Insights      []string         `json:"insights"`
	Notice        string           `json:"notice,omitempty"`
}

// Monitor runs the status, synthesis and uptime cadences and applies every
// response on one goroutine, so the reconciler and alert presenter have a
// single owner.
type Monitor struct {
	client   Client
	cfg      Config
	deps     Deps
	rec      *reconcile.Reconciler
	alerts   *alert.Presenter
	view     View
	apply    chan func()
	tasks    *scheduler.Group
	logger   *slog.Logger
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	notices  chan nexus.Alert

	// spawnMu orders spawn against Stop so no request is added to inflight
	// once Stop has started waiting.
	spawnMu  sync.Mutex
	stopped  bool
	inflight sync.WaitGroup

	mu       sync.RWMutex
	snapshot View
}

func New(client Client, cfg Config, deps Deps, logger *slog.Logger) *Monitor {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Second
	}
	if cfg.SynthesisInterval <= 0 {
		cfg.SynthesisInterval = 15 * time.Second
	}
	if cfg.UptimeInterval <= 0 {
		cfg.UptimeInterval = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	m := &Monitor{
		client:  client,
		cfg:     cfg,
		deps:    deps,
		rec:     reconcile.New(),
		alerts:  alert.NewPresenter(),
		view:    View{Uptime: "--"},
		apply:   make(chan func(), 64),
		notices: make(chan nexus.Alert, 8),
		logger:  logger,
		now:     time.Now,
	}
	m.snapshot = m.view
	m.tasks = scheduler.NewGroup(
		scheduler.Every("status", cfg.StatusInterval, func(context.Context) {
			m.spawn(m.refreshStatus)
		}, logger, scheduler.Immediately()),
		scheduler.Every("synthesis", cfg.SynthesisInterval, func(context.Context) {
			m.spawn(m.refreshSynthesis)
		}, logger, scheduler.Immediately()),
		scheduler.Every("uptime", cfg.UptimeInterval, func(context.Context) {
			m.post(m.tickUptime)
		}, logger),
	)
	return m
}

// SetNow replaces the time source for the reconciler and events. Call before
// Start. Used in tests only.
func (m *Monitor) SetNow(fn func() time.Time) {
	m.now = fn
	m.rec.SetNow(fn)
}

func (m *Monitor) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.loopDone = make(chan struct{})
	go m.loop()
	if m.deps.Notifier != nil {
		go m.notifyLoop(m.ctx)
	}
	m.tasks.Start(m.ctx)
}

// Stop halts all cadences. Requests already in flight are abandoned. A
// notification already being sent is left to finish on its own.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.spawnMu.Lock()
	if m.stopped {
		m.spawnMu.Unlock()
		return
	}
	m.stopped = true
	m.spawnMu.Unlock()

	m.tasks.Stop()
	m.cancel()
	m.inflight.Wait()
	<-m.loopDone
}

// Snapshot returns the last published view. Safe from any goroutine.
func (m *Monitor) Snapshot() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Refresh triggers an out-of-band status and synthesis fetch.
func (m *Monitor) Refresh() {
	m.spawn(m.refreshStatus)
	m.spawn(m.refreshSynthesis)
}

func (m *Monitor) StartCapture() { m.action("start", m.client.Start) }
func (m *Monitor) StopCapture()  { m.action("stop", m.client.Stop) }

func (m *Monitor) ToggleFocus() {
	m.action("toggle_focus", func(ctx context.Context) error {
		_, err := m.client.ToggleFocus(ctx)
		return err
	})
}

// DismissAlert hides the banner right away and tells the server in the
// background. A server that still reports the alert brings it back on the
// next poll.
func (m *Monitor) DismissAlert() {
	m.post(func() {
		if m.alerts.Dismiss() != alert.Dismissed {
			return
		}
		m.view.Alert = nil
		m.journal(db.EventAlertDismissed, nil)
		m.broadcast(events.Event{Type: events.TypeAlertDismissed})
		m.publish()
	})
	m.action("dismiss_alert", m.client.DismissAlert)
}

// Query asks the service a question. done is called from a worker goroutine.
func (m *Monitor) Query(question string, done func(answer string, err error)) {
	m.spawn(func(ctx context.Context) {
		reqCtx, cancel := context.WithTimeout(ctx, m.queryTimeout())
		defer cancel()
		answer, err := m.client.Query(reqCtx, question)
		if err != nil {
			m.logger.Warn("monitor: query failed", "err", err)
		} else if m.deps.Journal != nil {
			if jerr := m.deps.Journal.InsertQuery(question, answer); jerr != nil {
				m.logger.Debug("monitor: journal query failed", "err", jerr)
			}
		}
		if done != nil {
			done(answer, err)
		}
	})
}

// queryTimeout gives model-backed queries more room than status polls.
func (m *Monitor) queryTimeout() time.Duration {
	return 6 * m.cfg.RequestTimeout
}

func (m *Monitor) loop() {
	defer close(m.loopDone)
	for {
		select {
		case <-m.ctx.Done():
			return
		case fn := <-m.apply:
			fn()
		}
	}
}

// post queues fn for the monitor goroutine. It is dropped after Stop.
func (m *Monitor) post(fn func()) {
	if m.ctx == nil {
		return
	}
	select {
	case m.apply <- fn:
	case <-m.ctx.Done():
	}
}

// spawn runs fn on its own goroutine so a slow request never delays the
// next tick. There is no in-flight guard: whichever response lands last wins.
func (m *Monitor) spawn(fn func(ctx context.Context)) {
	m.spawnMu.Lock()
	if m.ctx == nil || m.stopped {
		m.spawnMu.Unlock()
		return
	}
	m.inflight.Add(1)
	m.spawnMu.Unlock()
	go func() {
		defer m.inflight.Done()
		fn(m.ctx)
	}()
}

func (m *Monitor) action(name string, call func(ctx context.Context) error) {
	m.spawn(func(ctx context.Context) {
		reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
		err := call(reqCtx)
		cancel()
		if err != nil {
			m.logger.Warn("monitor: action failed", "action", name, "err", err)
			m.post(func() { m.actionFailed(name, err) })
			return
		}
		m.logger.Debug("monitor: action ok", "action", name)
		m.post(m.clearNotice)
		m.refreshStatus(ctx)
	})
}

func (m *Monitor) refreshStatus(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	status := nexus.Poll(reqCtx, m.client.Status)
	if !status.OK() {
		m.logger.Debug("monitor: status poll failed", "err", status.Err)
		return
	}
	m.post(func() { m.applyStatus(status.Value) })

	acts := nexus.Poll(reqCtx, m.client.Activities)
	if !acts.OK() {
		m.logger.Debug("monitor: activities poll failed", "err", acts.Err)
		return
	}
	m.post(func() { m.applyActivities(acts.Value) })
}

func (m *Monitor) refreshSynthesis(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	res := nexus.Poll(reqCtx, m.client.Synthesis)
	if !res.OK() {
		m.logger.Debug("monitor: synthesis poll failed", "err", res.Err)
		return
	}
	m.post(func() { m.applySynthesis(res.Value) })
}

func (m *Monitor) applyStatus(st nexus.StatusResponse) {
	changed := false

	for _, tr := range m.rec.Apply(st.RunState()) {
		changed = true
		m.onTransition(tr)
	}
	state := m.rec.State()
	m.view.Running = state.Running
	m.view.Focus = state.Focus
	if up := m.rec.UptimeText(); up != m.view.Uptime {
		m.view.Uptime = up
		changed = true
	}

	if st.ActivityCount != m.view.ActivityCount {
		m.view.ActivityCount = st.ActivityCount
		changed = true
	}

	switch change := m.alerts.Observe(st.LatestAlert); change {
	case alert.Shown, alert.Replaced, alert.Restored:
		a, _ := m.alerts.Current()
		m.view.Alert = &a
		changed = true
		typ := events.TypeAlertShown
		if change == alert.Replaced {
			typ = events.TypeAlertReplaced
		}
		m.broadcast(events.Event{Type: typ, Priority: a.Priority, Message: a.Message})
		if change != alert.Restored {
			m.journal(db.EventAlertShown, map[string]string{"priority": a.Priority, "message": a.Message})
			m.notify(a)
		}
	case alert.Cleared:
		m.view.Alert = nil
		changed = true
		m.broadcast(events.Event{Type: events.TypeAlertCleared})
	}

	if m.deps.Journal != nil {
		if err := m.deps.Journal.Touch(); err != nil {
			m.logger.Debug("monitor: journal touch failed", "err", err)
		}
	}

	if changed {
		m.publish()
	}
}

func (m *Monitor) onTransition(tr reconcile.Transition) {
	m.logger.Debug("monitor: state changed", "field", string(tr.Field), "from", tr.From, "to", tr.To)
	switch tr.Field {
	case reconcile.FieldRunning:
		m.broadcast(events.Event{Type: events.TypeRunningChanged, Value: events.Bool(tr.To)})
		m.journal(db.EventRunningChanged, map[string]bool{"from": tr.From, "to": tr.To})
	case reconcile.FieldFocus:
		m.broadcast(events.Event{Type: events.TypeFocusChanged, Value: events.Bool(tr.To)})
		m.journal(db.EventFocusChanged, map[string]bool{"from": tr.From, "to": tr.To})
	}
}

func (m *Monitor) applyActivities(records []nexus.ActivityRecord) {
	lines := activity.Render(records, m.cfg.Location)
	chart := activity.BuildSeries(records)
	if slices.Equal(lines, m.view.Activities) && slices.Equal(chart, m.view.Chart) {
		return
	}
	m.view.Activities = lines
	m.view.Chart = chart
	m.broadcast(events.Event{Type: events.TypeActivitiesUpdated, Count: len(lines)})
	m.publish()
}

// applySynthesis replaces the insights wholesale. An empty list keeps what is
// already shown.
func (m *Monitor) applySynthesis(s nexus.Synthesis) {
	if len(s.Insights) == 0 || slices.Equal(s.Insights, m.view.Insights) {
		return
	}
	m.view.Insights = slices.Clone(s.Insights)
	m.broadcast(events.Event{Type: events.TypeInsightsUpdated, Count: len(s.Insights)})
	m.publish()
}

func (m *Monitor) tickUptime() {
	up := m.rec.UptimeText()
	if up == m.view.Uptime {
		return
	}
	m.view.Uptime = up
	m.publish()
}

func (m *Monitor) actionFailed(name string, err error) {
	m.view.Notice = fmt.Sprintf("%s failed: %v", name, err)
	m.journal(db.EventActionFailed, map[string]string{"action": name, "err": err.Error()})
	m.broadcast(events.Event{Type: events.TypeActionFailed, Message: m.view.Notice})
	m.publish()
}

func (m *Monitor) clearNotice() {
	if m.view.Notice == "" {
		return
	}
	m.view.Notice = ""
	m.publish()
}

func (m *Monitor) publish() {
	v := m.view
	m.mu.Lock()
	m.snapshot = v
	m.mu.Unlock()
	if m.deps.OnUpdate != nil {
		m.deps.OnUpdate(v)
	}
}

// notify hands the alert to the notification worker. Desktop and webhook
// delivery can take seconds, so it never runs on the apply goroutine. When
// the queue is full the alert is dropped.
func (m *Monitor) notify(a nexus.Alert) {
	if m.deps.Notifier == nil {
		return
	}
	select {
	case m.notices <- a:
	default:
		m.logger.Warn("monitor: notification queue full, dropping alert", "priority", a.Priority)
	}
}

func (m *Monitor) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-m.notices:
			m.deps.Notifier.Notify(a)
		}
	}
}

func (m *Monitor) broadcast(e events.Event) {
	if m.deps.Broadcaster == nil {
		return
	}
	e.Time = m.now()
	m.deps.Broadcaster.Broadcast(e)
}

func (m *Monitor) journal(eventType string, detail any) {
	if m.deps.Journal == nil {
		return
	}
	var text string
	if detail != nil {
		b, _ := json.Marshal(detail)
		text = string(b)
	}
	if err := m.deps.Journal.InsertEvent(eventType, text); err != nil {
		m.logger.Debug("monitor: journal insert failed", "type", eventType, "err", err)
	}
}
