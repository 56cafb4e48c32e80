package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/zsprackett/nexus-console/internal/nexus"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Desktop bool   `json:"desktop"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier fires system notifications and optional webhook POSTs when an
// alert becomes visible.
type Notifier struct {
	mu      sync.RWMutex
	cfg     Config
	logger  *slog.Logger
	client  *http.Client
	command func(name string, args ...string) error
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
		command: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// SetConfig swaps settings at runtime, e.g. after a config file reload.
func (n *Notifier) SetConfig(cfg Config) {
	n.mu.Lock()
	n.cfg = cfg
	n.mu.Unlock()
}

func (n *Notifier) config() Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg
}

// Notify announces a newly visible alert.
func (n *Notifier) Notify(a nexus.Alert) {
	cfg := n.config()
	if !cfg.Enabled {
		return
	}

	if cfg.Desktop {
		n.sendSystemNotification(a)
	}
	if cfg.Webhook != "" {
		n.sendWebhook(cfg.Webhook, a)
	}
	if cfg.NtfyURL != "" {
		n.sendNtfy(cfg.NtfyURL, a)
	}
}

func (n *Notifier) sendSystemNotification(a nexus.Alert) {
	title := "NEXUS " + strings.ToUpper(priorityOrDefault(a.Priority))
	var err error
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, a.Message, title)
		err = n.command("osascript", "-e", script)
	case "linux":
		err = n.command("notify-send", "--app-name=nexus-console", title, a.Message)
	default:
		return
	}
	if err != nil {
		n.logger.Debug("notify: desktop notification failed", "err", err)
	}
}

type webhookPayload struct {
	Priority  string `json:"priority"`
	Message   string `json:"message"`
	AlertTime string `json:"alert_time,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(url string, a nexus.Alert) {
	payload := webhookPayload{
		Priority:  priorityOrDefault(a.Priority),
		Message:   a.Message,
		AlertTime: a.Timestamp,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.post(url, payload); err != nil {
		n.logger.Warn("notify: webhook failed", "url", url, "err", err)
	}
}

type ntfyPayload struct {
	Topic    string   `json:"topic,omitempty"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(url string, a nexus.Alert) {
	payload := ntfyPayload{
		Title:    fmt.Sprintf("NEXUS alert (%s)", priorityOrDefault(a.Priority)),
		Message:  a.Message,
		Priority: NtfyPriority(a.Priority),
		Tags:     []string{"rotating_light"},
	}
	if err := n.post(url, payload); err != nil {
		n.logger.Warn("notify: ntfy failed", "url", url, "err", err)
	}
}

func (n *Notifier) post(url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// NtfyPriority maps an alert priority onto ntfy's 1-5 scale.
func NtfyPriority(priority string) int {
	switch strings.ToLower(priority) {
	case "high", "urgent":
		return 5
	case "medium":
		return 4
	default:
		return 3
	}
}

func priorityOrDefault(p string) string {
	if p == "" {
		return "info"
	}
	return p
}
