package ui

import (
	"testing"

	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

func TestStatusIconPolling(t *testing.T) {
	icon, _ := StatusIcon(usagepoller.Polling)
	if icon != IconPolling {
		t.Errorf("got %q", icon)
	}
}

func TestStatusIconDistinctColors(t *testing.T) {
	_, polling := StatusIcon(usagepoller.Polling)
	_, idle := StatusIcon(usagepoller.Idle)
	if polling == idle {
		t.Error("polling should have distinct color from idle")
	}
}

func TestTitleColorWarning(t *testing.T) {
	if TitleColor(render.KindWarning) != ColorWarning {
		t.Error("warning title should use the warning color")
	}
	if TitleColor(render.KindText) == ColorWarning {
		t.Error("text title should not look like a warning")
	}
}

func TestUsageColorName(t *testing.T) {
	tests := []struct {
		frac float64
		want string
	}{
		{0, "green"},
		{0.59, "green"},
		{0.6, "yellow"},
		{0.8, "red"},
		{1.2, "red"},
	}
	for _, tt := range tests {
		if got := UsageColorName(tt.frac); got != tt.want {
			t.Errorf("UsageColorName(%v) = %q, want %q", tt.frac, got, tt.want)
		}
	}
}
