package notify_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zsprackett/nexus-console/internal/nexus"
	"github.com/zsprackett/nexus-console/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNtfyNotification(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := notify.New(notify.Config{
		Enabled: true,
		NtfyURL: srv.URL + "/nexus",
	}, discardLogger())

	n.Notify(nexus.Alert{Priority: "high", Message: "Attachment missing"})

	if received == nil {
		t.Fatal("no POST received")
	}
	if received["message"] != "Attachment missing" {
		t.Errorf("unexpected message: %v", received["message"])
	}
	if received["priority"] != float64(5) {
		t.Errorf("unexpected priority: %v", received["priority"])
	}
}

func TestWebhookPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(204)
	}))
	defer srv.Close()

	n := notify.New(notify.Config{Enabled: true, Webhook: srv.URL}, discardLogger())
	n.Notify(nexus.Alert{Message: "Take a break"})

	if received["priority"] != "info" {
		t.Errorf("expected default priority info, got %v", received["priority"])
	}
}

func TestNotify_WebhookErrorLogged(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Invalid URL forces a POST error.
	n := notify.New(notify.Config{Enabled: true, Webhook: "http://127.0.0.1:1"}, logger)
	n.Notify(nexus.Alert{Priority: "high", Message: "test"})

	if !strings.Contains(buf.String(), "webhook") {
		t.Errorf("expected warn log mentioning webhook, got: %q", buf.String())
	}
}

func TestNotify_DisabledNoOp(t *testing.T) {
	n := notify.New(notify.Config{Enabled: false}, discardLogger())
	// Must not panic.
	n.Notify(nexus.Alert{Message: "test"})
}

func TestSetConfigEnables(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	n := notify.New(notify.Config{}, discardLogger())
	n.Notify(nexus.Alert{Message: "first"})
	n.SetConfig(notify.Config{Enabled: true, Webhook: srv.URL})
	n.Notify(nexus.Alert{Message: "second"})

	if hits != 1 {
		t.Errorf("expected 1 webhook hit, got %d", hits)
	}
}

func TestNtfyPriority(t *testing.T) {
	cases := map[string]int{"high": 5, "HIGH": 5, "medium": 4, "low": 3, "": 3}
	for in, want := range cases {
		if got := notify.NtfyPriority(in); got != want {
			t.Errorf("NtfyPriority(%q): got %d want %d", in, got, want)
		}
	}
}
