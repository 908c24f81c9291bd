package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zsprackett/usage-bar/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.ExecutablePath != config.DefaultExecutablePath {
		t.Errorf("executable path: got %q want %q", cfg.Settings.ExecutablePath, config.DefaultExecutablePath)
	}
	if cfg.Settings.DisplayMode != config.DisplayText {
		t.Errorf("display mode: got %q want text", cfg.Settings.DisplayMode)
	}
	if cfg.Settings.RefreshInterval != config.DefaultRefreshInterval {
		t.Errorf("interval: got %v", cfg.Settings.RefreshInterval.Duration())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"settings":{"displayMode":"barChart","refreshInterval":"5m0s"}}`), 0644)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.DisplayMode != config.DisplayBarChart {
		t.Errorf("got %q want barChart", cfg.Settings.DisplayMode)
	}
	if cfg.Settings.RefreshInterval.Duration() != 5*time.Minute {
		t.Errorf("got %v want 5m", cfg.Settings.RefreshInterval.Duration())
	}
	if cfg.Settings.ExecutablePath != config.DefaultExecutablePath {
		t.Errorf("unset path should keep default, got %q", cfg.Settings.ExecutablePath)
	}
	if len(cfg.Grammar.SessionLabels) == 0 {
		t.Error("grammar should fall back to defaults")
	}
}

func TestLoadNormalizesInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"settings":{"displayMode":"hologram","refreshInterval":"7s"}}`), 0644)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.DisplayMode != config.DisplayText || cfg.Settings.RefreshInterval != config.DefaultRefreshInterval {
		t.Errorf("invalid settings should be replaced by defaults, got %+v", cfg.Settings)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{not json`), 0644)

	cfg, err := config.Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if cfg.Settings != config.DefaultSettings() {
		t.Errorf("malformed file should still yield defaults, got %+v", cfg.Settings)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := config.Defaults()
	cfg.Settings.DisplayMode = config.DisplayPieChart
	cfg.Settings.RefreshInterval = config.RefreshInterval(30 * time.Second)

	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Settings != cfg.Settings {
		t.Errorf("got %+v want %+v", got.Settings, cfg.Settings)
	}
}

func TestParseRefreshInterval(t *testing.T) {
	if _, err := config.ParseRefreshInterval("2m"); err != nil {
		t.Errorf("2m should be allowed: %v", err)
	}
	if _, err := config.ParseRefreshInterval("45s"); err == nil {
		t.Error("45s should be rejected")
	}
	if _, err := config.ParseRefreshInterval("soon"); err == nil {
		t.Error("garbage should be rejected")
	}
}

func TestPathWarning(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "claude")
	os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755)
	plain := filepath.Join(dir, "notes.txt")
	os.WriteFile(plain, []byte("x"), 0644)

	cases := []struct {
		path string
		want string
	}{
		{"", ""},
		{exe, ""},
		{plain, config.PathWarningText},
		{dir, config.PathWarningText},
		{filepath.Join(dir, "missing"), config.PathWarningText},
	}
	for _, tc := range cases {
		if got := config.PathWarning(tc.path); got != tc.want {
			t.Errorf("PathWarning(%q): got %q want %q", tc.path, got, tc.want)
		}
	}
}

func TestRefreshIntervalLabels(t *testing.T) {
	if got := config.RefreshInterval(30 * time.Second).Label(); got != "30 seconds" {
		t.Errorf("got %q", got)
	}
	if got := config.RefreshInterval(5 * time.Minute).Label(); got != "5 minutes" {
		t.Errorf("got %q", got)
	}
}
