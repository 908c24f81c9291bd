package usage

import (
	"strconv"
	"strings"
)

// Placeholder is shown in place of a percentage that could not be read.
const Placeholder = "--"

// Percent is one quota reading. Known is false when the CLI printed the
// window but no numeric value could be read from it.
type Percent struct {
	Value   float64 `json:"value"`
	Known   bool    `json:"known"`
	Display string  `json:"display,omitempty"`
}

// KnownPercent returns a Percent holding v, displayed as the shortest decimal form.
func KnownPercent(v float64) Percent {
	return Percent{Value: v, Known: true, Display: FormatPercent(v)}
}

// UnknownPercent returns a Percent with no value, keeping the raw token if any.
func UnknownPercent(display string) Percent {
	return Percent{Display: display}
}

// String returns the display form, or Placeholder when the value is unknown.
func (p Percent) String() string {
	if !p.Known {
		return Placeholder
	}
	if p.Display != "" {
		return p.Display
	}
	return FormatPercent(p.Value)
}

// Clamped returns the value limited to [0,100]; unknown reads as 0.
func (p Percent) Clamped() float64 {
	if !p.Known || p.Value < 0 {
		return 0
	}
	if p.Value > 100 {
		return 100
	}
	return p.Value
}

// FormatPercent renders v as "42%" or "42.5%".
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// Record is an immutable snapshot produced by one successful poll.
type Record struct {
	Session       Percent `json:"session"`
	Weekly        Percent `json:"weekly"`
	SessionResets string  `json:"session_resets,omitempty"`
}

func (r Record) HasSessionResets() bool {
	return r.SessionResets != ""
}

// DisplayString is the compact status text, e.g. "42% / 7%".
func (r Record) DisplayString() string {
	return r.Session.String() + " / " + r.Weekly.String()
}

// empty reports whether nothing at all was extracted.
func (r Record) empty() bool {
	return !r.Session.Known && !r.Weekly.Known && strings.TrimSpace(r.SessionResets) == ""
}
