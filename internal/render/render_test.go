package render_test

import (
	"testing"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/usage"
)

var rec = usage.Record{
	Session:       usage.KnownPercent(42),
	Weekly:        usage.KnownPercent(7),
	SessionResets: "3h",
}

func TestDecide_Unknown(t *testing.T) {
	for _, mode := range config.DisplayModes {
		spec := render.Decide(usage.StateUnknown(), mode)
		if spec.Kind != render.KindText || spec.Title != "CC: --" {
			t.Errorf("%s: got %+v", mode, spec)
		}
		if spec.Menu.Session != "Session: --" || spec.Menu.Weekly != "Weekly: --" {
			t.Errorf("%s: menu %+v", mode, spec.Menu)
		}
	}
}

func TestDecide_Modes(t *testing.T) {
	state := usage.StateOK(rec)
	tests := []struct {
		mode  config.DisplayMode
		kind  render.Kind
		title string
		line  string
	}{
		{config.DisplayText, render.KindText, "CC: 42% / 7%", "CC: 42% / 7%"},
		{config.DisplayPieChart, render.KindPie, "CC:", "CC: ◑◔"},
		{config.DisplayBarChart, render.KindBar, "CC:", "CC: ▄▂"},
	}
	for _, tt := range tests {
		spec := render.Decide(state, tt.mode)
		if spec.Kind != tt.kind || spec.Title != tt.title {
			t.Errorf("%s: got kind %q title %q", tt.mode, spec.Kind, spec.Title)
		}
		if got := render.Line(spec); got != tt.line {
			t.Errorf("%s: line %q want %q", tt.mode, got, tt.line)
		}
		if spec.Menu.Session != "Session: 42% (resets 3h)" || spec.Menu.Weekly != "Weekly: 7%" {
			t.Errorf("%s: menu %+v", tt.mode, spec.Menu)
		}
	}
}

func TestDecide_Fills(t *testing.T) {
	r := usage.Record{Session: usage.KnownPercent(150), Weekly: usage.UnknownPercent("--%")}
	spec := render.Decide(usage.StateOK(r), config.DisplayBarChart)
	if spec.Session != 1 || spec.Weekly != 0 {
		t.Errorf("fills: session %v weekly %v", spec.Session, spec.Weekly)
	}
	if got := render.Glyphs(spec); got != "█▁" {
		t.Errorf("glyphs %q", got)
	}

	text := render.Decide(usage.StateOK(r), config.DisplayText)
	if text.Title != "CC: 150% / --" {
		t.Errorf("text title %q", text.Title)
	}
}

func TestDecide_ErrorWinsOverMode(t *testing.T) {
	state := usage.StateErr(usage.ExecutableNotFound("/missing/claude", nil))
	for _, mode := range config.DisplayModes {
		spec := render.Decide(state, mode)
		if spec.Kind != render.KindWarning || spec.Title != "CC:" {
			t.Errorf("%s: got %+v", mode, spec)
		}
		if spec.Message != "Claude executable not found at /missing/claude" {
			t.Errorf("%s: message %q", mode, spec.Message)
		}
		if spec.Menu.Error != spec.Message || spec.Menu.Session != "Session: --" || spec.Menu.Weekly != "Weekly: --" {
			t.Errorf("%s: menu %+v", mode, spec.Menu)
		}
		if render.Line(spec) != "CC: ⚠" {
			t.Errorf("%s: line %q", mode, render.Line(spec))
		}
	}
}

func TestDecide_RecoveryRestoresNumbers(t *testing.T) {
	failed := render.Decide(usage.StateErr(usage.Timeout(0)), config.DisplayText)
	if failed.Kind != render.KindWarning {
		t.Fatalf("got %q", failed.Kind)
	}
	ok := render.Decide(usage.StateOK(rec), config.DisplayText)
	if ok.Kind != render.KindText || ok.Title != "CC: 42% / 7%" || ok.Menu.Error != "" {
		t.Errorf("after recovery: %+v", ok)
	}
}

func TestDecide_Pure(t *testing.T) {
	state := usage.StateOK(rec)
	a := render.Decide(state, config.DisplayPieChart)
	b := render.Decide(state, config.DisplayPieChart)
	if a != b {
		t.Errorf("same inputs gave %+v and %+v", a, b)
	}
}

func TestGlyphs_Boundaries(t *testing.T) {
	tests := []struct {
		fill float64
		want string
	}{
		{0, "○"},
		{0.01, "◔"},
		{0.5, "◑"},
		{0.8, "◕"},
		{1, "●"},
	}
	for _, tt := range tests {
		spec := render.Spec{Kind: render.KindPie, Session: tt.fill, Weekly: tt.fill}
		if got := render.Glyphs(spec); got != tt.want+tt.want {
			t.Errorf("fill %v: got %q want %q", tt.fill, got, tt.want+tt.want)
		}
	}
	if render.Glyphs(render.Spec{Kind: render.KindText}) != "" {
		t.Error("text spec should have no glyphs")
	}
}
