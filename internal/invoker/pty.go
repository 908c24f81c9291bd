package invoker

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/zsprackett/usage-bar/internal/usage"
)

// lockedBuffer is written by the pty reader and polled by the run loop.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (inv *Invoker) ready(out string) bool {
	return inv.ReadyPattern != nil && inv.ReadyPattern.MatchString(usage.StripANSI(out))
}

// runPTY starts cmd on a pseudo-terminal. pty.Start puts the child in a new
// session, so killGroup reaches everything it spawned.
func (inv *Invoker) runPTY(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (Output, error) {
	start := time.Now()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 50, Cols: 160})
	if err != nil {
		return Output{}, usage.InvocationFailed(0, "could not start claude", err)
	}
	defer ptmx.Close()

	var buf lockedBuffer
	readDone := make(chan struct{})
	go func() {
		io.Copy(&buf, ptmx)
		close(readDone)
	}()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	result := func() Output {
		return Output{Stdout: buf.String(), ExitCode: exitCode(cmd), Duration: time.Since(start)}
	}

	for {
		select {
		case err := <-done:
			// Drain what the child wrote before exiting.
			select {
			case <-readDone:
			case <-time.After(500 * time.Millisecond):
			}
			out := result()
			if err != nil && !inv.ready(out.Stdout) {
				return out, usage.InvocationFailed(out.ExitCode, excerpt(out.Stdout), err)
			}
			return out, nil

		case <-ctx.Done():
			killGroup(cmd)
			<-done
			if out := result(); inv.ready(out.Stdout) {
				return out, nil
			}
			return Output{}, ctxError(ctx, timeout)

		case <-ticker.C:
			if !inv.ready(buf.String()) {
				continue
			}
			// Let the rest of the screen render, then stop the CLI.
			select {
			case <-time.After(inv.Settle):
			case <-ctx.Done():
			}
			killGroup(cmd)
			<-done
			return result(), nil
		}
	}
}
