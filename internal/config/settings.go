package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zsprackett/usage-bar/internal/invoker"
)

// DefaultExecutablePath is where Homebrew installs the Claude Code CLI.
const DefaultExecutablePath = "/opt/homebrew/bin/claude"

// PathWarningText is shown when the configured executable is unusable.
const PathWarningText = "Executable not found at this path"

type DisplayMode string

const (
	DisplayText     DisplayMode = "text"
	DisplayPieChart DisplayMode = "pieChart"
	DisplayBarChart DisplayMode = "barChart"
)

// DisplayModes lists the modes in menu order.
var DisplayModes = []DisplayMode{DisplayText, DisplayPieChart, DisplayBarChart}

func (m DisplayMode) Valid() bool {
	switch m {
	case DisplayText, DisplayPieChart, DisplayBarChart:
		return true
	}
	return false
}

func (m DisplayMode) Label() string {
	switch m {
	case DisplayPieChart:
		return "Pie Charts"
	case DisplayBarChart:
		return "Bar Chart"
	default:
		return "Text"
	}
}

// RefreshInterval is one of the allowed polling periods.
type RefreshInterval time.Duration

const DefaultRefreshInterval = RefreshInterval(time.Minute)

// RefreshIntervals lists the allowed periods in menu order.
var RefreshIntervals = []RefreshInterval{
	RefreshInterval(30 * time.Second),
	RefreshInterval(time.Minute),
	RefreshInterval(2 * time.Minute),
	RefreshInterval(5 * time.Minute),
	RefreshInterval(10 * time.Minute),
}

func (r RefreshInterval) Duration() time.Duration {
	return time.Duration(r)
}

func (r RefreshInterval) Valid() bool {
	for _, allowed := range RefreshIntervals {
		if r == allowed {
			return true
		}
	}
	return false
}

func (r RefreshInterval) Label() string {
	d := r.Duration()
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d == time.Minute {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}

func (r RefreshInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Duration().String())
}

func (r *RefreshInterval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs int64
		if err2 := json.Unmarshal(data, &secs); err2 != nil {
			return fmt.Errorf("refresh interval: %w", err)
		}
		*r = RefreshInterval(time.Duration(secs) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("refresh interval: %w", err)
	}
	*r = RefreshInterval(d)
	return nil
}

// ParseRefreshInterval accepts Go duration strings such as "30s" or "5m".
func ParseRefreshInterval(s string) (RefreshInterval, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	r := RefreshInterval(d)
	if !r.Valid() {
		return 0, fmt.Errorf("refresh interval %s is not one of the allowed values", d)
	}
	return r, nil
}

// Settings are the user-facing preferences.
type Settings struct {
	DisplayMode     DisplayMode     `json:"displayMode"`
	RefreshInterval RefreshInterval `json:"refreshInterval"`
	ExecutablePath  string          `json:"executablePath"`
}

func DefaultSettings() Settings {
	return Settings{
		DisplayMode:     DisplayText,
		RefreshInterval: DefaultRefreshInterval,
		ExecutablePath:  DefaultExecutablePath,
	}
}

// Validate rejects values outside the allowed enumerations. An unusable
// executable path is not an error here; see PathWarning.
func (s Settings) Validate() error {
	if !s.DisplayMode.Valid() {
		return fmt.Errorf("unknown display mode %q", s.DisplayMode)
	}
	if !s.RefreshInterval.Valid() {
		return fmt.Errorf("refresh interval %s is not one of the allowed values", s.RefreshInterval.Duration())
	}
	return nil
}

// normalize replaces invalid enumerations with defaults.
func (s Settings) normalize() Settings {
	def := DefaultSettings()
	if !s.DisplayMode.Valid() {
		s.DisplayMode = def.DisplayMode
	}
	if !s.RefreshInterval.Valid() {
		s.RefreshInterval = def.RefreshInterval
	}
	return s
}

// IsExecutable reports whether path names a regular file the current user may execute.
func IsExecutable(path string) bool {
	return invoker.CheckExecutable(path) == nil
}

// PathWarning returns PathWarningText for a non-empty path that is not
// executable, or "" when the path is fine or unset.
func PathWarning(path string) string {
	if path == "" || IsExecutable(path) {
		return ""
	}
	return PathWarningText
}
