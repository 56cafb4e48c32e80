// Package demo is an in-memory status service that speaks the same HTTP API
// as a real capture backend. It feeds the dashboard with sample activity so
// the console can be tried without one.
package demo

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/nexus-console/internal/nexus"
)

const (
	// MaxKept bounds the in-memory history.
	MaxKept = 50
	// MaxServed matches the page size of /api/activities.
	MaxServed = 10

	// naiveLayout is the offset-less ISO form capture backends emit.
	naiveLayout = "2006-01-02T15:04:05.000000"
)

type Options struct {
	// CaptureInterval is how often a sample activity is recorded while
	// running. Zero disables the generator; Capture can still be called.
	CaptureInterval time.Duration
	// StringAnalysis sends analysis as a JSON-encoded string instead of an
	// object.
	StringAnalysis bool
	// Seed pre-populates this many activities spread over the last two hours.
	Seed int
}

type entry struct {
	id     string
	at     time.Time
	sample sample
}

type Service struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	running  bool
	focus    bool
	total    int
	next     int
	entries  []entry // most recent first
	alert    *nexus.Alert
	stopLoop chan struct{}
	loopDone chan struct{}
}

func New(opts Options, logger *slog.Logger) *Service {
	s := &Service{opts: opts, logger: logger, now: time.Now}
	s.seed(opts.Seed)
	return s
}

// SetNow replaces the clock. Used in tests only.
func (s *Service) SetNow(fn func() time.Time) {
	s.mu.Lock()
	s.now = fn
	s.mu.Unlock()
}

func (s *Service) seed(n int) {
	base := s.now()
	for i := n - 1; i >= 0; i-- {
		s.recordLocked(base.Add(-time.Duration(i)*120*time.Minute/time.Duration(max(n, 1))), false)
	}
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+nexus.PathStatus, s.handleStatus)
	mux.HandleFunc("GET "+nexus.PathActivities, s.handleActivities)
	mux.HandleFunc("GET "+nexus.PathSynthesis, s.handleSynthesis)
	mux.HandleFunc("POST "+nexus.PathStart, s.handleStart)
	mux.HandleFunc("POST "+nexus.PathStop, s.handleStop)
	mux.HandleFunc("POST "+nexus.PathToggleFocus, s.handleToggleFocus)
	mux.HandleFunc("POST "+nexus.PathDismissAlert, s.handleDismiss)
	mux.HandleFunc("POST "+nexus.PathQuery, s.handleQuery)
	return mux
}

// Close stops the generator if it is running.
func (s *Service) Close() {
	s.mu.Lock()
	halt := s.detachLoopLocked()
	s.mu.Unlock()
	halt()
}

// detachLoopLocked forgets the running generator and returns a func that
// stops it. Call the result after releasing s.mu: the generator takes the
// lock on every capture.
func (s *Service) detachLoopLocked() func() {
	stop, done := s.stopLoop, s.loopDone
	s.stopLoop, s.loopDone = nil, nil
	return func() {
		if stop != nil {
			close(stop)
			<-done
		}
	}
}

// Capture records the next sample activity as if a screen capture had just
// been analysed. It raises an alert when the sample asks to interrupt.
func (s *Service) Capture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(s.now(), true)
}

func (s *Service) recordLocked(at time.Time, alerting bool) {
	smp := samples[s.next%len(samples)]
	s.next++
	s.total++
	s.entries = slices.Insert(s.entries, 0, entry{id: uuid.NewString(), at: at, sample: smp})
	if len(s.entries) > MaxKept {
		s.entries = s.entries[:MaxKept]
	}
	if !alerting {
		return
	}
	msg, priority, ok := smp.interrupt()
	if !ok {
		return
	}
	if s.focus && priority != "high" && priority != "critical" {
		return
	}
	s.alert = &nexus.Alert{Message: msg, Priority: priority, Timestamp: at.Format(naiveLayout)}
	s.logger.Debug("demo: alert raised", "priority", priority, "app", smp.AppName)
}

func (s *Service) startLoop() {
	if s.opts.CaptureInterval <= 0 || s.stopLoop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopLoop, s.loopDone = stop, done
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.opts.CaptureInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Capture()
			}
		}
	}()
}

type wireActivity struct {
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	AppName     string         `json:"app_name"`
	WindowTitle string         `json:"window_title"`
	Analysis    nexus.Analysis `json:"analysis"`
}

func (s *Service) wire(e entry) wireActivity {
	analysis := nexus.NewAnalysis(e.sample.Analysis)
	if s.opts.StringAnalysis {
		b, _ := json.Marshal(e.sample.Analysis)
		analysis = nexus.NewEncodedAnalysis(string(b))
	}
	return wireActivity{
		ID:          e.id,
		Timestamp:   e.at.Format(naiveLayout),
		AppName:     e.sample.AppName,
		WindowTitle: e.sample.WindowTitle,
		Analysis:    analysis,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := nexus.StatusResponse{
		IsRunning:     s.running,
		IsFocusMode:   s.focus,
		ActivityCount: s.total,
		LatestAlert:   s.alert,
	}
	s.mu.Unlock()
	// latest_alert is always present, null when there is none.
	writeJSON(w, http.StatusOK, struct {
		nexus.StatusResponse
		LatestAlert *nexus.Alert `json:"latest_alert"`
	}{resp, resp.LatestAlert})
}

func (s *Service) handleActivities(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := min(len(s.entries), MaxServed)
	out := make([]wireActivity, 0, n)
	for _, e := range s.entries[:n] {
		out = append(out, s.wire(e))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"activities": out})
}

func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		writeJSON(w, http.StatusOK, nexus.ActionResponse{Status: "ok", Message: "Already running"})
		return
	}
	s.running = true
	s.startLoop()
	s.logger.Info("demo: monitoring started")
	writeJSON(w, http.StatusOK, nexus.ActionResponse{Status: "ok", Message: "Monitoring started"})
}

func (s *Service) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, nexus.ActionResponse{Status: "ok", Message: "Not running"})
		return
	}
	s.running = false
	halt := s.detachLoopLocked()
	s.mu.Unlock()
	halt()
	s.logger.Info("demo: monitoring stopped")
	writeJSON(w, http.StatusOK, nexus.ActionResponse{Status: "ok", Message: "Monitoring stopped"})
}

func (s *Service) handleToggleFocus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.focus = !s.focus
	focus := s.focus
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, nexus.ActionResponse{Status: "ok", IsFocusMode: focus})
}

func (s *Service) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.alert = nil
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, nexus.ActionResponse{Status: "ok"})
}

func (s *Service) handleSynthesis(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	insights := synthesize(s.entries)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, nexus.Synthesis{Insights: insights})
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req nexus.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	resp := answer(req.Query, s.entries)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, nexus.QueryResponse{Response: resp})
}

type tally struct {
	name  string
	count int
}

func ranked(counts map[string]int) []tally {
	out := make([]tally, 0, len(counts))
	for k, v := range counts {
		out = append(out, tally{k, v})
	}
	slices.SortFunc(out, func(a, b tally) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return out
}

// synthesize derives insights from what is in memory. No activity means no
// insights, which the dashboard treats as "keep what you have".
func synthesize(entries []entry) []string {
	if len(entries) == 0 {
		return nil
	}
	apps := map[string]int{}
	tags := map[string]int{}
	urgent := 0
	for _, e := range entries {
		apps[e.sample.AppName]++
		if ts, ok := e.sample.Analysis["tags"].([]string); ok {
			for _, t := range ts {
				tags[t]++
			}
		}
		if _, _, ok := e.sample.interrupt(); ok {
			urgent++
		}
	}

	top := ranked(apps)[0]
	insights := []string{
		fmt.Sprintf("Most of your recent time was in %s (%d of %d captures)", top.name, top.count, len(entries)),
	}
	if t := ranked(tags); len(t) > 0 {
		insights = append(insights, fmt.Sprintf("Main theme: %s", t[0].name))
	}
	if len(apps) > 1 {
		insights = append(insights, fmt.Sprintf("You switched between %d apps", len(apps)))
	}
	if urgent > 0 {
		insights = append(insights, fmt.Sprintf("%d moments needed your attention", urgent))
	}
	return insights
}

// answer matches query words against recent activity.
func answer(query string, entries []entry) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, "?.!,")
		if len(w) > 3 {
			words = append(words, w)
		}
	}

	var hits []string
	for _, e := range entries {
		activity, _ := e.sample.Analysis["activity"].(string)
		haystack := strings.ToLower(e.sample.AppName + " " + e.sample.WindowTitle + " " + activity)
		for _, w := range words {
			if strings.Contains(haystack, w) {
				hits = append(hits, fmt.Sprintf("%s %s: %s", e.at.Format("15:04"), e.sample.AppName, activity))
				break
			}
		}
		if len(hits) == 5 {
			break
		}
	}
	if len(hits) == 0 {
		if len(entries) == 0 {
			return "No activity has been recorded yet."
		}
		return fmt.Sprintf("Nothing in recent activity matches %q.", query)
	}
	return fmt.Sprintf("Found %d matching activities:\n%s", len(hits), strings.Join(hits, "\n"))
}
