// Package invoker runs the usage CLI as a child process with a bounded
// lifetime. The child gets its own session so a timeout can kill the whole
// process group, including anything it spawned.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zsprackett/usage-bar/internal/usage"
)

const (
	DefaultTimeout = 30 * time.Second
	defaultSettle  = 300 * time.Millisecond
	excerptLimit   = 200
)

// DefaultReadyPattern matches the first quota line of `claude /usage`.
var DefaultReadyPattern = regexp.MustCompile(`(?i)\d{1,3}(?:\.\d+)?\s*%\s*(?:used|left)`)

// Output is what a successful run produced.
type Output struct {
	Stdout   string
	ExitCode int
	Duration time.Duration
}

// Invoker holds per-run limits. The zero value runs without a PTY and uses DefaultTimeout.
type Invoker struct {
	Timeout time.Duration
	// PTY attaches the child to a pseudo-terminal; interactive CLIs only
	// print their usage screen when stdout is a terminal.
	PTY bool
	// ReadyPattern, in PTY mode, ends the run as soon as the output matches.
	ReadyPattern *regexp.Regexp
	// Settle is how long to keep reading after ReadyPattern first matches.
	Settle time.Duration
	Env    []string
}

func New(timeout time.Duration, usePTY bool) *Invoker {
	return &Invoker{
		Timeout:      timeout,
		PTY:          usePTY,
		ReadyPattern: DefaultReadyPattern,
		Settle:       defaultSettle,
	}
}

// CheckExecutable returns an executable-not-found error unless path is a
// regular file the current user may execute.
func CheckExecutable(path string) error {
	if strings.TrimSpace(path) == "" {
		return usage.ExecutableNotFound("", errors.New("no executable path configured"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return usage.ExecutableNotFound(path, err)
	}
	if !info.Mode().IsRegular() {
		return usage.ExecutableNotFound(path, fmt.Errorf("%s is not a regular file", path))
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return usage.ExecutableNotFound(path, err)
	}
	return nil
}

// Run executes path with args. Failures are *usage.Error values; a
// cancelled ctx returns ctx.Err().
func (inv *Invoker) Run(ctx context.Context, path string, args []string) (Output, error) {
	if err := CheckExecutable(path); err != nil {
		return Output{}, err
	}
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(path, args...)
	cmd.Env = append(append(os.Environ(), "TERM=xterm-256color"), inv.Env...)
	cmd.WaitDelay = time.Second

	if inv.PTY {
		return inv.runPTY(ctx, cmd, timeout)
	}
	return inv.runPlain(ctx, cmd, timeout)
}

func (inv *Invoker) runPlain(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{}, usage.InvocationFailed(0, "could not start claude", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		out := Output{Stdout: stdout.String(), ExitCode: exitCode(cmd), Duration: time.Since(start)}
		if err != nil {
			return out, usage.InvocationFailed(out.ExitCode, excerpt(stderr.String()), err)
		}
		return out, nil
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		return Output{}, ctxError(ctx, timeout)
	}
}

func ctxError(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return usage.Timeout(timeout)
	}
	return ctx.Err()
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the process group created by Setsid.
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

func excerpt(s string) string {
	s = strings.TrimSpace(usage.StripANSI(s))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > excerptLimit {
		s = s[:excerptLimit] + "…"
	}
	return s
}
