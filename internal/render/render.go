// Package render turns the current usage state and display mode into what
// the status item shows.
package render

import (
	"strings"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/usage"
)

// TitlePrefix leads every status title.
const TitlePrefix = "CC:"

type Kind string

const (
	KindText    Kind = "text"
	KindPie     Kind = "pie"
	KindBar     Kind = "bar"
	KindWarning Kind = "warning"
)

// Menu holds the lines shown beneath the status item.
type Menu struct {
	Error   string `json:"error,omitempty"`
	Session string `json:"session"`
	Weekly  string `json:"weekly"`
}

// Spec is a render decision. Session and Weekly are fills in [0,1] and are
// only meaningful for the pie and bar kinds.
type Spec struct {
	Kind    Kind    `json:"kind"`
	Title   string  `json:"title"`
	Session float64 `json:"session"`
	Weekly  float64 `json:"weekly"`
	Message string  `json:"message,omitempty"`
	Menu    Menu    `json:"menu"`
}

// IsIcon reports whether the spec is drawn as glyphs rather than text.
func (s Spec) IsIcon() bool {
	return s.Kind != KindText
}

// Decide is a pure function of its inputs. An error always wins over the
// display mode; before the first poll every mode shows the text placeholder.
func Decide(state usage.State, mode config.DisplayMode) Spec {
	switch state.Kind() {
	case usage.StateKindErr:
		msg := state.Err().Message
		return Spec{
			Kind:    KindWarning,
			Title:   TitlePrefix,
			Message: msg,
			Menu: Menu{
				Error:   msg,
				Session: "Session: " + usage.Placeholder,
				Weekly:  "Weekly: " + usage.Placeholder,
			},
		}
	case usage.StateKindOK:
		rec, _ := state.Record()
		spec := Spec{Menu: menuFor(rec)}
		switch mode {
		case config.DisplayPieChart:
			spec.Kind = KindPie
		case config.DisplayBarChart:
			spec.Kind = KindBar
		default:
			spec.Kind = KindText
			spec.Title = TitlePrefix + " " + rec.DisplayString()
			return spec
		}
		spec.Title = TitlePrefix
		spec.Session = rec.Session.Clamped() / 100
		spec.Weekly = rec.Weekly.Clamped() / 100
		return spec
	default:
		return Spec{
			Kind:  KindText,
			Title: TitlePrefix + " " + usage.Placeholder,
			Menu: Menu{
				Session: "Session: " + usage.Placeholder,
				Weekly:  "Weekly: " + usage.Placeholder,
			},
		}
	}
}

func menuFor(rec usage.Record) Menu {
	session := "Session: " + rec.Session.String()
	if rec.HasSessionResets() {
		session += " (resets " + rec.SessionResets + ")"
	}
	return Menu{
		Session: session,
		Weekly:  "Weekly: " + rec.Weekly.String(),
	}
}

var (
	pieGlyphs = []rune("○◔◑◕●")
	barGlyphs = []rune("▁▂▃▄▅▆▇█")
)

const warningGlyph = "⚠"

// Glyphs returns the terminal rendering of an icon spec, or "" for text.
func Glyphs(s Spec) string {
	switch s.Kind {
	case KindPie:
		return string(glyph(pieGlyphs, s.Session)) + string(glyph(pieGlyphs, s.Weekly))
	case KindBar:
		return string(glyph(barGlyphs, s.Session)) + string(glyph(barGlyphs, s.Weekly))
	case KindWarning:
		return warningGlyph
	}
	return ""
}

// Line is the single-line status text: the title followed by any glyphs.
func Line(s Spec) string {
	g := Glyphs(s)
	if g == "" {
		return s.Title
	}
	return strings.TrimSpace(s.Title + " " + g)
}

func glyph(set []rune, fill float64) rune {
	if fill <= 0 {
		return set[0]
	}
	if fill >= 1 {
		return set[len(set)-1]
	}
	// Any non-zero fill below full shows at least the second glyph.
	i := 1 + int(fill*float64(len(set)-2))
	if i > len(set)-2 {
		i = len(set) - 2
	}
	return set[i]
}
