package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zsprackett/usage-bar/internal/usage"
)

type NotificationsConfig struct {
	Enabled          bool    `json:"enabled"`
	Desktop          bool    `json:"desktop"`
	Webhook          string  `json:"webhook"`
	NtfyURL          string  `json:"ntfy"`
	SessionThreshold float64 `json:"sessionThreshold"` // percent; 0 disables
}

type TLSConfig struct {
	Mode     string `json:"mode"`     // "self-signed", "manual", or "" (disabled)
	CertFile string `json:"certFile"` // required for manual
	KeyFile  string `json:"keyFile"`  // required for manual
	CacheDir string `json:"cacheDir"` // for self-signed; defaults to ~/.usage-bar/certs
}

// AuthConfig turns on login for the web API when Username is set.
type AuthConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"` // bcrypt
	Secret       string `json:"secret"`       // HS256 signing key
}

func (a AuthConfig) Enabled() bool { return a.Username != "" }

type WebserverConfig struct {
	Enabled bool       `json:"enabled"`
	Port    int        `json:"port"`
	Host    string     `json:"host"`
	TLS     TLSConfig  `json:"tls"`
	Auth    AuthConfig `json:"auth"`
}

type Config struct {
	Settings       Settings            `json:"settings"`
	Args           []string            `json:"args"`
	TimeoutSeconds int                 `json:"timeoutSeconds"`
	PTY            bool                `json:"pty"`
	Grammar        usage.Grammar       `json:"grammar"`
	LogDir         string              `json:"logDir"`
	LogLevel       string              `json:"logLevel"`
	Notifications  NotificationsConfig `json:"notifications"`
	Webserver      WebserverConfig     `json:"webserver"`
	TmuxStatusFile string              `json:"tmuxStatusFile"` // empty: written only when run inside tmux
}

func Defaults() Config {
	return Config{
		Settings:       DefaultSettings(),
		Args:           []string{"/usage"},
		TimeoutSeconds: 30,
		PTY:            true,
		Grammar:        usage.DefaultGrammar(),
		LogDir:         filepath.Join(appDir(), "logs"),
		LogLevel:       "info",
		Notifications: NotificationsConfig{
			Desktop:          true,
			SessionThreshold: 90,
		},
		Webserver: WebserverConfig{
			Enabled: false,
			Port:    7823,
			Host:    "127.0.0.1",
		},
	}
}

func appDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".usage-bar")
}

func DefaultPath() string {
	return filepath.Join(appDir(), "config.json")
}

func DefaultTmuxStatusFile() string {
	return filepath.Join(appDir(), "tmux-status.txt")
}

func CertDir() string {
	return filepath.Join(appDir(), "certs")
}

func DBPath() string {
	return filepath.Join(appDir(), "history.db")
}

// Load reads path over Defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Settings = cfg.Settings.normalize()
	cfg.Grammar = cfg.Grammar.Merge(usage.DefaultGrammar())
	if len(cfg.Args) == 0 {
		cfg.Args = Defaults().Args
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = Defaults().TimeoutSeconds
	}
	return cfg, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
