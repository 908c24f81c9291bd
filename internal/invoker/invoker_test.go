package invoker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zsprackett/usage-bar/internal/invoker"
	"github.com/zsprackett/usage-bar/internal/usage"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func kindOf(t *testing.T, err error) usage.ErrorKind {
	t.Helper()
	var ue *usage.Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *usage.Error, got %T: %v", err, err)
	}
	return ue.Kind
}

func TestRun_ExecutableNotFound(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	os.WriteFile(plain, []byte("echo hi"), 0644)

	inv := invoker.New(time.Second, false)
	for _, path := range []string{"", filepath.Join(dir, "missing"), dir, plain} {
		_, err := inv.Run(context.Background(), path, nil)
		if k := kindOf(t, err); k != usage.KindExecutableNotFound {
			t.Errorf("Run(%q): kind %q want executable-not-found", path, k)
		}
	}
}

func TestRun_CapturesStdout(t *testing.T) {
	path := writeScript(t, `echo "Session: 42% (resets 3h)"; echo "Weekly: 7%"; echo "noise" >&2`)
	out, err := invoker.New(5*time.Second, false).Run(context.Background(), path, []string{"/usage"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stdout != "Session: 42% (resets 3h)\nWeekly: 7%\n" {
		t.Errorf("stdout: got %q", out.Stdout)
	}
	if out.ExitCode != 0 {
		t.Errorf("exit code: got %d", out.ExitCode)
	}
}

func TestRun_PassesArgs(t *testing.T) {
	path := writeScript(t, `echo "$1 $2"`)
	out, err := invoker.New(5*time.Second, false).Run(context.Background(), path, []string{"/usage", "--plain"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.Stdout) != "/usage --plain" {
		t.Errorf("got %q", out.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	path := writeScript(t, `echo "not authorised" >&2; exit 3`)
	_, err := invoker.New(5*time.Second, false).Run(context.Background(), path, nil)
	if k := kindOf(t, err); k != usage.KindInvocationFailed {
		t.Fatalf("kind %q want invocation-failed", k)
	}
	ue := usage.AsError(err)
	if ue.ExitCode != 3 {
		t.Errorf("exit code: got %d want 3", ue.ExitCode)
	}
	if !strings.Contains(ue.Message, "not authorised") {
		t.Errorf("message should carry stderr excerpt: %q", ue.Message)
	}
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	path := writeScript(t, `sleep 30 & echo $! > `+pidFile+`; wait`)

	start := time.Now()
	_, err := invoker.New(300*time.Millisecond, false).Run(context.Background(), path, nil)
	if k := kindOf(t, err); k != usage.KindTimeout {
		t.Fatalf("kind %q want timeout", k)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("child pid not recorded: %v", err)
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	deadline := time.Now().Add(3 * time.Second)
	for alive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("grandchild %d still running after timeout", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// alive treats zombies as dead; reaping orphans is up to init.
func alive(pid int) bool {
	if unix.Kill(pid, 0) != nil {
		return false
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return true
	}
	if i := strings.LastIndexByte(string(stat), ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] != 'Z'
	}
	return true
}

func TestRun_ContextCancelled(t *testing.T) {
	path := writeScript(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := invoker.New(10*time.Second, false).Run(ctx, path, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v want context.Canceled", err)
	}
}

func TestRun_PTYReturnsOnceReady(t *testing.T) {
	path := writeScript(t, `echo "Current session"; echo "11% used"; sleep 30`)
	inv := invoker.New(10*time.Second, true)
	inv.Settle = 20 * time.Millisecond

	start := time.Now()
	out, err := inv.Run(context.Background(), path, nil)
	if err != nil {
		if ue := usage.AsError(err); ue.Kind == usage.KindInvocationFailed && ue.ExitCode == 0 {
			t.Skipf("pty unavailable: %v", err)
		}
		t.Fatal(err)
	}
	if !strings.Contains(out.Stdout, "11% used") {
		t.Errorf("stdout: got %q", out.Stdout)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("PTY run should stop once ready, took %v", elapsed)
	}
}

func TestCheckExecutable(t *testing.T) {
	if err := invoker.CheckExecutable(writeScript(t, "true")); err != nil {
		t.Errorf("script should be executable: %v", err)
	}
	if err := invoker.CheckExecutable("   "); err == nil {
		t.Error("blank path should fail")
	}
}
