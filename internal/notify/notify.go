package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

const appName = "usage-bar"

// Notifier watches poll events and alerts on transitions: usage becoming
// unavailable, recovering, and session usage crossing the threshold.
type Notifier struct {
	cfg     config.NotificationsConfig
	desktop Desktop
	client  *http.Client
	logger  *slog.Logger

	mu      sync.Mutex
	failing bool
	errKind usage.ErrorKind
	alerted bool

	wg sync.WaitGroup
}

// New returns a Notifier. A nil desktop disables local notifications.
func New(cfg config.NotificationsConfig, desktop Desktop, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		desktop: desktop,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

// Handle is a usagepoller.Handler. Deliveries run in the background; call
// Wait to block until they finish.
func (n *Notifier) Handle(ev usagepoller.Event) {
	if !n.cfg.Enabled {
		return
	}
	title, msg, ok := n.transition(ev)
	if !ok {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.Notify(title, msg)
	}()
}

func (n *Notifier) transition(ev usagepoller.Event) (title, msg string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ev.Kind == usagepoller.EventFailed {
		if n.failing && n.errKind == ev.Err.Kind {
			return "", "", false
		}
		n.failing = true
		n.errKind = ev.Err.Kind
		return "Claude usage unavailable", ev.Err.Message, true
	}

	recovered := n.failing
	n.failing = false
	n.errKind = ""

	session := ev.Record.Session
	threshold := n.cfg.SessionThreshold
	if threshold > 0 && session.Known {
		if session.Value >= threshold && !n.alerted {
			n.alerted = true
			high := fmt.Sprintf("Session at %s (weekly %s)", session, ev.Record.Weekly)
			if recovered {
				// recovery and threshold in one alert
				return "Claude usage restored",
					fmt.Sprintf("%s, above the %s alert threshold", high, usage.FormatPercent(threshold)), true
			}
			return "Claude session usage high", high, true
		}
		if session.Value < threshold {
			n.alerted = false
		}
	}
	if recovered {
		return "Claude usage restored", ev.Record.DisplayString(), true
	}
	return "", "", false
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Notify sends title and msg on every configured channel.
func (n *Notifier) Notify(title, msg string) {
	if n.cfg.Desktop && n.desktop != nil {
		if err := n.desktop.Send(title, msg); err != nil {
			n.logger.Warn("notify: desktop notification failed", "err", err)
		}
	}
	if n.cfg.Webhook != "" {
		n.sendWebhook(title, msg)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(title, msg)
	}
}

type webhookPayload struct {
	App       string `json:"app"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(title, msg string) {
	payload := webhookPayload{
		App:       appName,
		Title:     title,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.post(n.cfg.Webhook, payload); err != nil {
		n.logger.Warn("notify: webhook POST failed", "url", n.cfg.Webhook, "err", err)
	}
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(title, msg string) {
	payload := ntfyPayload{
		Title:    title,
		Message:  msg,
		Priority: 4,
		Tags:     []string{"bar_chart"},
	}
	if err := n.post(n.cfg.NtfyURL, payload); err != nil {
		n.logger.Warn("notify: ntfy POST failed", "url", n.cfg.NtfyURL, "err", err)
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
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
