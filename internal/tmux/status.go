// Package tmux publishes the usage line for a tmux status bar. The status
// bar re-runs #(cat FILE) on every status-interval tick, so writing the file
// on each poll gives live updates without invoking the CLI from tmux.
package tmux

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

const (
	colorLabel = "#89b4fa"
	colorOK    = "#a6e3a1"
	colorWarn  = "#f9e2af"
	colorHigh  = "#f38ba8"
	colorDim   = "#6c7086"
)

// InsideTmux reports whether the process runs inside a tmux client.
func InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// Format renders state as a tmux status segment.
func Format(state usage.State, mode config.DisplayMode) string {
	spec := render.Decide(state, mode)
	line := render.Line(spec)
	switch state.Kind() {
	case usage.StateKindErr:
		return fmt.Sprintf("#[fg=%s,bold]%s#[default]", colorHigh, line)
	case usage.StateKindOK:
		rec, _ := state.Record()
		return fmt.Sprintf("#[fg=%s]%s#[default]", levelColor(rec), line)
	default:
		return fmt.Sprintf("#[fg=%s]%s#[default]", colorDim, line)
	}
}

// levelColor follows the higher of the two windows.
func levelColor(rec usage.Record) string {
	frac := max(rec.Session.Clamped(), rec.Weekly.Clamped()) / 100
	switch {
	case frac >= 0.8:
		return colorHigh
	case frac >= 0.6:
		return colorWarn
	default:
		return colorOK
	}
}

// StatusWriter keeps a status file current. It is a usagepoller.Handler.
type StatusWriter struct {
	path     string
	settings usagepoller.SettingsSource
	logger   *slog.Logger

	mu sync.Mutex
}

func NewStatusWriter(path string, settings usagepoller.SettingsSource, logger *slog.Logger) *StatusWriter {
	return &StatusWriter{path: path, settings: settings, logger: logger}
}

// Init writes the placeholder line so the bar is never empty.
func (w *StatusWriter) Init() error {
	return w.write(usage.StateUnknown(), w.settings.Settings().DisplayMode)
}

func (w *StatusWriter) Handle(ev usagepoller.Event) {
	w.rewrite(ev.State(), w.settings.Settings().DisplayMode)
}

// Follow re-renders current() whenever the display mode changes, so the bar
// switches mode without waiting for the next poll.
func (w *StatusWriter) Follow(store *config.Store, current func() usage.State) (unsubscribe func()) {
	return store.Subscribe(func(c config.Change) {
		if c.DisplayModeChanged() {
			w.rewrite(current(), c.New.DisplayMode)
		}
	})
}

func (w *StatusWriter) rewrite(state usage.State, mode config.DisplayMode) {
	if err := w.write(state, mode); err != nil {
		w.logger.Warn("tmux: write status file", "path", w.path, "err", err)
	}
}

func (w *StatusWriter) write(state usage.State, mode config.DisplayMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(w.path), 0700); err != nil {
		return err
	}
	content := fmt.Sprintf("#[fg=%s,bold]%s#[default] ", colorLabel, "claude") + Format(state, mode)
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}
