package demo_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zsprackett/nexus-console/internal/activity"
	"github.com/zsprackett/nexus-console/internal/demo"
	"github.com/zsprackett/nexus-console/internal/nexus"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDemo(t *testing.T, opts demo.Options) (*demo.Service, *nexus.Client) {
	t.Helper()
	svc := demo.New(opts, discardLogger())
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		srv.Close()
		svc.Close()
	})
	return svc, nexus.NewClient(srv.URL, "", time.Second)
}

func TestStartStopAcknowledged(t *testing.T) {
	_, c := newDemo(t, demo.Options{})
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("second start should still ack: %v", err)
	}
	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsRunning {
		t.Error("expected running after start")
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = c.Status(ctx)
	if st.IsRunning {
		t.Error("expected stopped after stop")
	}
}

func TestInterruptingSampleRaisesAlert(t *testing.T) {
	svc, c := newDemo(t, demo.Options{})
	ctx := context.Background()

	// The third sample is the email with a missing attachment.
	for range 3 {
		svc.Capture()
	}
	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.LatestAlert.Empty() || st.LatestAlert.Priority != "high" {
		t.Fatalf("expected high alert, got %+v", st.LatestAlert)
	}
	if !strings.Contains(st.LatestAlert.Message, "attachment") {
		t.Errorf("unexpected message %q", st.LatestAlert.Message)
	}
	if st.ActivityCount != 3 {
		t.Errorf("activity count: got %d", st.ActivityCount)
	}

	if err := c.DismissAlert(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = c.Status(ctx)
	if !st.LatestAlert.Empty() {
		t.Errorf("expected alert cleared, got %+v", st.LatestAlert)
	}
}

func TestActivitiesMostRecentFirstAndBounded(t *testing.T) {
	svc, c := newDemo(t, demo.Options{StringAnalysis: true})
	for range 12 {
		svc.Capture()
	}
	acts, err := c.Activities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != demo.MaxServed {
		t.Fatalf("expected %d activities, got %d", demo.MaxServed, len(acts))
	}
	// 12 captures over 10 samples: the newest is the second sample again.
	if acts[0].AppName != "Chrome" {
		t.Errorf("newest activity: got %q", acts[0].AppName)
	}
	if acts[0].Timestamp.IsZero() {
		t.Error("expected naive timestamp to decode")
	}
	lines := activity.Render(acts, time.Local)
	if lines[0].Description == "" {
		t.Error("encoded analysis should still render a description")
	}
}

func TestSeedPopulatesHistory(t *testing.T) {
	_, c := newDemo(t, demo.Options{Seed: 20})
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.ActivityCount != 20 {
		t.Errorf("activity count: got %d", st.ActivityCount)
	}
	if !st.LatestAlert.Empty() {
		t.Error("seeded history should not raise alerts")
	}
}

func TestSynthesisEmptyUntilActivity(t *testing.T) {
	svc, c := newDemo(t, demo.Options{})
	ctx := context.Background()

	s, err := c.Synthesis(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Insights) != 0 {
		t.Errorf("expected no insights, got %v", s.Insights)
	}

	for range 4 {
		svc.Capture()
	}
	s, err = c.Synthesis(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Insights) == 0 {
		t.Fatal("expected insights after activity")
	}
	if !strings.Contains(s.Insights[0], "Chrome") {
		t.Errorf("expected Chrome as top app, got %q", s.Insights[0])
	}
}

func TestQueryMatchesActivity(t *testing.T) {
	svc, c := newDemo(t, demo.Options{})
	for range 3 {
		svc.Capture()
	}
	got, err := c.Query(context.Background(), "what email was I writing?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Mail") {
		t.Errorf("expected Mail in answer, got %q", got)
	}

	got, _ = c.Query(context.Background(), "kubernetes")
	if !strings.Contains(got, "Nothing") {
		t.Errorf("expected no match, got %q", got)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	svc := demo.New(demo.Options{}, discardLogger())
	req := httptest.NewRequest(http.MethodPost, nexus.PathQuery, strings.NewReader(`{"query":"  "}`))
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGeneratorRecordsWhileRunning(t *testing.T) {
	_, c := newDemo(t, demo.Options{CaptureInterval: 10 * time.Millisecond})
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := c.Status(ctx)
		if err == nil && st.ActivityCount >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("generator never recorded activity")
}

func TestStartStopRaceKeepsGenerator(t *testing.T) {
	_, c := newDemo(t, demo.Options{CaptureInterval: 5 * time.Millisecond})
	ctx := context.Background()

	for range 30 {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Stop(ctx)
		}()
		go func() {
			defer wg.Done()
			c.Start(ctx)
		}()
		wg.Wait()
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	base := st.ActivityCount
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := c.Status(ctx)
		if err == nil && st.ActivityCount > base {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("running without a generator")
}

func TestToggleFocus(t *testing.T) {
	_, c := newDemo(t, demo.Options{})
	on, err := c.ToggleFocus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	off, _ := c.ToggleFocus(context.Background())
	if !on || off {
		t.Errorf("toggle sequence: got %v then %v", on, off)
	}
}
