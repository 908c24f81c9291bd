package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// Scheduler icons
const (
	IconWaiting = "●"
	IconPolling = "⟳"
	IconIdle    = "○"
)

func StatusIcon(s usagepoller.State) (string, tcell.Color) {
	switch s {
	case usagepoller.Polling:
		return IconPolling, ColorAccent
	case usagepoller.Waiting:
		return IconWaiting, ColorSuccess
	default:
		return IconIdle, ColorTextMuted
	}
}

// TitleColor is the header color for a render kind.
func TitleColor(k render.Kind) tcell.Color {
	switch k {
	case render.KindWarning:
		return ColorWarning
	case render.KindPie, render.KindBar:
		return ColorPrimary
	default:
		return ColorText
	}
}

// UsageColorName is the tview color tag for a usage fraction in [0,1].
func UsageColorName(frac float64) string {
	switch {
	case frac >= 0.8:
		return "red"
	case frac >= 0.6:
		return "yellow"
	default:
		return "green"
	}
}
