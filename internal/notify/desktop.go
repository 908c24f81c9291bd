package notify

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/godbus/dbus/v5"
)

// Desktop shows a local notification.
type Desktop interface {
	Send(title, body string) error
}

// NewDesktop picks the platform's notification channel: Notification
// Center via osascript on macOS, org.freedesktop.Notifications elsewhere.
func NewDesktop() Desktop {
	if runtime.GOOS == "darwin" {
		return osascript{}
	}
	return freedesktop{}
}

type osascript struct{}

func (osascript) Send(title, body string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, body, title)
	return exec.Command("osascript", "-e", script).Run()
}

type freedesktop struct{}

const (
	fdoDest   = "org.freedesktop.Notifications"
	fdoPath   = "/org/freedesktop/Notifications"
	fdoNotify = "org.freedesktop.Notifications.Notify"
)

func (freedesktop) Send(title, body string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(fdoDest, dbus.ObjectPath(fdoPath))
	call := obj.Call(fdoNotify, 0,
		appName,
		uint32(0),
		"",
		title,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(5000),
	)
	return call.Err
}
