// Package session defines the capability set tracers use to reach the
// environment being traced: running commands and inspecting files.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned when the session itself cannot be reached, as
// opposed to a command that ran and failed.
var ErrUnavailable = errors.New("session unavailable")

// ExecOptions tunes a single command invocation.
type ExecOptions struct {
	Env []string // extra KEY=VALUE pairs
	Dir string   // working directory
}

// Session is the transport-independent view of a machine.
type Session interface {
	ExecuteCommand(ctx context.Context, argv []string, opts ExecOptions) (stdout, stderr string, err error)
	Exists(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) (string, error)
}

// CommandError reports a command that failed inside the session. ExitCode
// is -1 when the command was interrupted before it finished.
type CommandError struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", strings.Join(e.Argv, " "))
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsCommandError reports whether err is a *CommandError and returns it.
func IsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}
