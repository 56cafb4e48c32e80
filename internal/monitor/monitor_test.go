package monitor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/zsprackett/nexus-console/internal/db"
	"github.com/zsprackett/nexus-console/internal/events"
	"github.com/zsprackett/nexus-console/internal/monitor"
	"github.com/zsprackett/nexus-console/internal/nexus"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient serves canned responses. Fields are guarded by mu so tests can
// change them while the monitor polls.
type fakeClient struct {
	mu          sync.Mutex
	status      nexus.StatusResponse
	statusErr   error
	activities  []nexus.ActivityRecord
	insights    []string
	actionErr   error
	dismissErr  error
	statusCalls int
	synthCalls  int
	dismissed   int
	started     int
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeClient) calls() (status, synth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.synthCalls
}

func (f *fakeClient) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.started++
	f.status.IsRunning = true
	return nil
}

func (f *fakeClient) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.status.IsRunning = false
	return nil
}

func (f *fakeClient) Status(context.Context) (nexus.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.status, f.statusErr
}

func (f *fakeClient) Query(_ context.Context, q string) (string, error) {
	return "you asked: " + q, nil
}

func (f *fakeClient) Activities(context.Context) ([]nexus.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activities, nil
}

func (f *fakeClient) ToggleFocus(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.IsFocusMode = !f.status.IsFocusMode
	return f.status.IsFocusMode, nil
}

func (f *fakeClient) DismissAlert(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
	if f.dismissErr != nil {
		return f.dismissErr
	}
	f.status.LatestAlert = nil
	return nil
}

func (f *fakeClient) Synthesis(context.Context) (nexus.Synthesis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthCalls++
	return nexus.Synthesis{Insights: f.insights}, nil
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureBroadcaster) Broadcast(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureBroadcaster) count(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []nexus.Alert
}

func (c *captureNotifier) Notify(a nexus.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

func (c *captureNotifier) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func (c *captureNotifier) waitLen(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.len() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifications, got %d", n, c.len())
}

// stuckNotifier holds every Notify call until release is closed, like a
// webhook that never answers.
type stuckNotifier struct {
	release chan struct{}
	entered chan nexus.Alert
}

func (s *stuckNotifier) Notify(a nexus.Alert) {
	select {
	case s.entered <- a:
	default:
	}
	<-s.release
}

// manualClock is a time source tests advance by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// slowConfig only polls once at start so tests drive every later refresh.
func slowConfig() monitor.Config {
	return monitor.Config{
		StatusInterval:    time.Hour,
		SynthesisInterval: time.Hour,
		UptimeInterval:    time.Hour,
		RequestTimeout:    time.Second,
		Location:          time.UTC,
	}
}

func waitFor(t *testing.T, m *monitor.Monitor, desc string, cond func(monitor.View) bool) monitor.View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := m.Snapshot(); cond(v) {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last view %+v", desc, m.Snapshot())
	return monitor.View{}
}

func waitCalls(t *testing.T, f *fakeClient, status, synth int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, y := f.calls()
		if s >= status && y >= synth {
			time.Sleep(20 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d status / %d synthesis calls", status, synth)
}

func TestInitialPollPopulatesView(t *testing.T) {
	fc := &fakeClient{
		status: nexus.StatusResponse{
			IsRunning:     true,
			ActivityCount: 3,
			LatestAlert:   &nexus.Alert{Priority: "high", Message: "Meeting in 5 minutes"},
		},
		activities: []nexus.ActivityRecord{
			{AppName: "VS Code", Analysis: nexus.NewAnalysis(map[string]any{"activity": "Writing code"})},
			{AppName: "Mail"},
		},
		insights: []string{"Deep work block"},
	}
	bc := &captureBroadcaster{}
	nt := &captureNotifier{}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Broadcaster: bc, Notifier: nt}, discardLogger())
	m.Start()
	defer m.Stop()

	v := waitFor(t, m, "initial poll", func(v monitor.View) bool {
		return v.Running && len(v.Activities) == 2 && len(v.Insights) == 1 && v.Alert != nil
	})
	if v.ActivityCount != 3 {
		t.Errorf("activity count: got %d", v.ActivityCount)
	}
	if v.Activities[0].Text() != "VS Code: Writing code" || v.Activities[1].Text() != "Mail" {
		t.Errorf("unexpected lines: %+v", v.Activities)
	}
	if v.Uptime == "--" {
		t.Error("expected uptime once running")
	}
	nt.waitLen(t, 1)
	if bc.count(events.TypeRunningChanged) != 1 || bc.count(events.TypeAlertShown) != 1 {
		t.Errorf("unexpected events: %+v", bc.events)
	}
}

func TestRepeatedStatusIsIdempotent(t *testing.T) {
	fc := &fakeClient{status: nexus.StatusResponse{IsRunning: true, LatestAlert: &nexus.Alert{Message: "x"}}}
	bc := &captureBroadcaster{}
	nt := &captureNotifier{}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Broadcaster: bc, Notifier: nt}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "running", func(v monitor.View) bool { return v.Running })
	nt.waitLen(t, 1)
	m.Refresh()
	m.Refresh()
	waitCalls(t, fc, 3, 3)

	if n := bc.count(events.TypeRunningChanged); n != 1 {
		t.Errorf("expected one running transition, got %d", n)
	}
	if nt.len() != 1 {
		t.Errorf("identical alert should notify once, got %d", nt.len())
	}
}

func TestFailedPollKeepsPriorState(t *testing.T) {
	fc := &fakeClient{status: nexus.StatusResponse{IsRunning: true, ActivityCount: 5}}
	m := monitor.New(fc, slowConfig(), monitor.Deps{}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "running", func(v monitor.View) bool { return v.Running })
	fc.set(func(f *fakeClient) {
		f.statusErr = errors.New("connection refused")
		f.status = nexus.StatusResponse{}
	})
	m.Refresh()
	waitCalls(t, fc, 2, 0)

	v := m.Snapshot()
	if !v.Running || v.ActivityCount != 5 {
		t.Errorf("failed poll changed the view: %+v", v)
	}
	if v.Notice != "" {
		t.Errorf("poll failures must not surface, got notice %q", v.Notice)
	}
}

func TestEmptySynthesisKeepsInsights(t *testing.T) {
	fc := &fakeClient{insights: []string{"Focused on email"}}
	m := monitor.New(fc, slowConfig(), monitor.Deps{}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "insights", func(v monitor.View) bool { return len(v.Insights) == 1 })
	fc.set(func(f *fakeClient) { f.insights = nil })
	m.Refresh()
	waitCalls(t, fc, 0, 2)

	if got := m.Snapshot().Insights; !slices.Equal(got, []string{"Focused on email"}) {
		t.Errorf("insights replaced by empty list: %v", got)
	}

	fc.set(func(f *fakeClient) { f.insights = []string{"a", "b"} })
	m.Refresh()
	waitFor(t, m, "replaced insights", func(v monitor.View) bool { return len(v.Insights) == 2 })
}

func TestStartTriggersRefresh(t *testing.T) {
	fc := &fakeClient{}
	m := monitor.New(fc, slowConfig(), monitor.Deps{}, discardLogger())
	m.Start()
	defer m.Stop()

	waitCalls(t, fc, 1, 1)
	if m.Snapshot().Running {
		t.Fatal("expected stopped before start")
	}
	m.StartCapture()
	v := waitFor(t, m, "running after start", func(v monitor.View) bool { return v.Running })
	if v.Uptime != "0h 0m 0s" {
		t.Errorf("uptime: got %q", v.Uptime)
	}

	m.StopCapture()
	v = waitFor(t, m, "stopped", func(v monitor.View) bool { return !v.Running })
	if v.Uptime != "--" {
		t.Errorf("uptime after stop: got %q", v.Uptime)
	}
}

func TestToggleFocusAppliesServerValue(t *testing.T) {
	fc := &fakeClient{}
	m := monitor.New(fc, slowConfig(), monitor.Deps{}, discardLogger())
	m.Start()
	defer m.Stop()

	waitCalls(t, fc, 1, 1)
	m.ToggleFocus()
	waitFor(t, m, "focus on", func(v monitor.View) bool { return v.Focus })
	m.ToggleFocus()
	waitFor(t, m, "focus off", func(v monitor.View) bool { return !v.Focus })
}

func TestActionFailureSetsNotice(t *testing.T) {
	fc := &fakeClient{actionErr: nexus.ErrNotOK}
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Journal: store}, discardLogger())
	m.Start()
	defer m.Stop()

	m.StartCapture()
	v := waitFor(t, m, "notice", func(v monitor.View) bool { return v.Notice != "" })
	if v.Running {
		t.Error("failed start must not flip running")
	}

	evs, err := store.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range evs {
		if e.EventType == db.EventActionFailed {
			found = true
		}
	}
	if !found {
		t.Errorf("expected action_failed in journal, got %+v", evs)
	}
}

func TestDismissHidesAlert(t *testing.T) {
	fc := &fakeClient{status: nexus.StatusResponse{LatestAlert: &nexus.Alert{Priority: "high", Message: "Meeting"}}}
	bc := &captureBroadcaster{}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Broadcaster: bc}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "alert", func(v monitor.View) bool { return v.Alert != nil })
	m.DismissAlert()
	waitFor(t, m, "dismissed", func(v monitor.View) bool { return v.Alert == nil })
	waitCalls(t, fc, 2, 0)

	fc.mu.Lock()
	dismissed := fc.dismissed
	fc.mu.Unlock()
	if dismissed != 1 {
		t.Errorf("expected server dismiss call, got %d", dismissed)
	}
	if bc.count(events.TypeAlertDismissed) != 1 {
		t.Errorf("expected alert_dismissed event")
	}
	if m.Snapshot().Alert != nil {
		t.Error("alert came back after server cleared it")
	}
}

func TestNewAlertReplacesVisible(t *testing.T) {
	fc := &fakeClient{status: nexus.StatusResponse{LatestAlert: &nexus.Alert{Message: "first"}}}
	bc := &captureBroadcaster{}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Broadcaster: bc}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "first", func(v monitor.View) bool { return v.Alert != nil && v.Alert.Message == "first" })
	fc.set(func(f *fakeClient) { f.status.LatestAlert = &nexus.Alert{Message: "second"} })
	m.Refresh()
	waitFor(t, m, "second", func(v monitor.View) bool { return v.Alert != nil && v.Alert.Message == "second" })
	if bc.count(events.TypeAlertReplaced) != 1 {
		t.Error("expected alert_replaced event")
	}
}

func TestQueryJournalsAnswer(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	m := monitor.New(&fakeClient{}, slowConfig(), monitor.Deps{Journal: store}, discardLogger())
	m.Start()
	defer m.Stop()

	got := make(chan string, 1)
	m.Query("what now", func(answer string, err error) {
		if err != nil {
			t.Error(err)
		}
		got <- answer
	})
	select {
	case a := <-got:
		if a != "you asked: what now" {
			t.Errorf("answer: got %q", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("query callback never ran")
	}

	qs, err := store.RecentQueries(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 1 || qs[0].Question != "what now" {
		t.Errorf("unexpected journal: %+v", qs)
	}
}

func TestOnUpdateCalledOnChange(t *testing.T) {
	var mu sync.Mutex
	var views []monitor.View
	fc := &fakeClient{status: nexus.StatusResponse{IsRunning: true}}
	m := monitor.New(fc, slowConfig(), monitor.Deps{OnUpdate: func(v monitor.View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	}}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "running", func(v monitor.View) bool { return v.Running })
	mu.Lock()
	n := len(views)
	mu.Unlock()
	if n == 0 {
		t.Fatal("expected OnUpdate to fire")
	}
}

func TestSlowNotifierDoesNotBlockUpdates(t *testing.T) {
	fc := &fakeClient{status: nexus.StatusResponse{IsRunning: true, LatestAlert: &nexus.Alert{Priority: "high", Message: "first"}}}
	nt := &stuckNotifier{release: make(chan struct{}), entered: make(chan nexus.Alert, 1)}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Notifier: nt}, discardLogger())
	m.Start()
	defer m.Stop()
	defer close(nt.release)

	waitFor(t, m, "first alert", func(v monitor.View) bool { return v.Alert != nil && v.Alert.Message == "first" })
	select {
	case <-nt.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier never called")
	}

	// The notifier is now stuck. Status and dismiss must still apply.
	fc.set(func(f *fakeClient) {
		f.status.LatestAlert = &nexus.Alert{Priority: "high", Message: "second"}
		f.status.ActivityCount = 7
	})
	m.Refresh()
	waitFor(t, m, "second alert", func(v monitor.View) bool {
		return v.Alert != nil && v.Alert.Message == "second" && v.ActivityCount == 7
	})

	start := time.Now()
	m.DismissAlert()
	waitFor(t, m, "dismissed", func(v monitor.View) bool { return v.Alert == nil })
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Errorf("dismiss took %v while a notification was pending", d)
	}
}

func TestUptimeAdvancesWithoutStatusPolls(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	fc := &fakeClient{status: nexus.StatusResponse{IsRunning: true}}
	cfg := slowConfig()
	cfg.UptimeInterval = 20 * time.Millisecond
	m := monitor.New(fc, cfg, monitor.Deps{}, discardLogger())
	m.SetNow(clock.Now)
	m.Start()
	defer m.Stop()

	waitFor(t, m, "running", func(v monitor.View) bool { return v.Running && v.Uptime == "0h 0m 0s" })
	clock.Advance(time.Hour + time.Minute + time.Second)
	waitFor(t, m, "uptime tick", func(v monitor.View) bool { return v.Uptime == "1h 1m 1s" })

	if status, _ := fc.calls(); status != 1 {
		t.Errorf("uptime should tick without polling, got %d status calls", status)
	}
}

func TestRestoredAlertIsNotNotifiedTwice(t *testing.T) {
	alertA := &nexus.Alert{Priority: "high", Message: "Meeting"}
	fc := &fakeClient{status: nexus.StatusResponse{LatestAlert: alertA}}
	nt := &captureNotifier{}
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	m := monitor.New(fc, slowConfig(), monitor.Deps{Notifier: nt, Journal: store}, discardLogger())
	m.Start()
	defer m.Stop()

	waitFor(t, m, "alert", func(v monitor.View) bool { return v.Alert != nil })
	nt.waitLen(t, 1)

	// The server keeps reporting the alert after the local dismiss, as a
	// response already in flight would.
	fc.set(func(f *fakeClient) { f.dismissErr = errors.New("busy") })
	m.DismissAlert()
	waitFor(t, m, "dismissed", func(v monitor.View) bool { return v.Alert == nil })
	m.Refresh()
	waitFor(t, m, "alert shown again", func(v monitor.View) bool { return v.Alert != nil })
	waitCalls(t, fc, 2, 0)

	if n := nt.len(); n != 1 {
		t.Errorf("expected one notification, got %d", n)
	}
	evs, err := store.RecentEvents(20)
	if err != nil {
		t.Fatal(err)
	}
	shown := 0
	for _, e := range evs {
		if e.EventType == db.EventAlertShown {
			shown++
		}
	}
	if shown != 1 {
		t.Errorf("expected alert_shown journaled once, got %d", shown)
	}
}

func TestActionsRacingStopAreDropped(t *testing.T) {
	fc := &fakeClient{status: nexus.StatusResponse{IsRunning: true}}
	m := monitor.New(fc, slowConfig(), monitor.Deps{}, discardLogger())
	m.Start()
	waitCalls(t, fc, 1, 1)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				m.Refresh()
				m.ToggleFocus()
			}
		}()
	}
	m.Stop()
	wg.Wait()

	before, _ := fc.calls()
	m.Refresh()
	m.StartCapture()
	time.Sleep(20 * time.Millisecond)
	if after, _ := fc.calls(); after != before {
		t.Errorf("requests ran after Stop: %d -> %d", before, after)
	}
	m.Stop()
}
