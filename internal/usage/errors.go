package usage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed poll.
type ErrorKind string

const (
	KindExecutableNotFound ErrorKind = "executable-not-found"
	KindInvocationFailed   ErrorKind = "invocation-failed"
	KindUnparsableOutput   ErrorKind = "unparsable-output"
	KindTimeout            ErrorKind = "timeout"
)

// Error is a recoverable poll failure with a user-facing message.
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	ExitCode int       `json:"exit_code,omitempty"`
	Err      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func ExecutableNotFound(path string, err error) *Error {
	msg := "Claude executable not found"
	if path != "" {
		msg = fmt.Sprintf("Claude executable not found at %s", path)
	}
	return &Error{Kind: KindExecutableNotFound, Message: msg, Err: err}
}

func InvocationFailed(exitCode int, detail string, err error) *Error {
	msg := "Failed to run claude"
	if exitCode != 0 {
		msg = fmt.Sprintf("claude exited with status %d", exitCode)
	}
	if detail != "" {
		msg += ": " + detail
	}
	return &Error{Kind: KindInvocationFailed, Message: msg, ExitCode: exitCode, Err: err}
}

func Unparsable(detail string) *Error {
	msg := "Could not read usage from claude output"
	if detail != "" {
		msg = detail
	}
	return &Error{Kind: KindUnparsableOutput, Message: msg}
}

func Timeout(after time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("claude did not respond within %s", after),
		Err:     context.DeadlineExceeded,
	}
}

// AsError converts err into an *Error. Unclassified errors become
// invocation failures; context deadline errors become timeouts.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "claude did not respond in time", Err: err}
	}
	return InvocationFailed(0, err.Error(), err)
}
