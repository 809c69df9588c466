package shell

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// MockCommand scripts the result of every command matching Pattern, a
// regular expression matched against the unwrapped command string.
type MockCommand struct {
	Pattern  string
	Output   string
	Stderr   string
	ExitCode int
	Error    error
}

// MockExecutor answers commands from a list of MockCommand in order; the
// first matching pattern wins. Unmatched commands fail.
type MockExecutor struct {
	Commands []MockCommand

	mu    sync.Mutex
	calls []string
}

// NewMockExecutor returns an executor scripted with cmds.
func NewMockExecutor(cmds ...MockCommand) *MockExecutor {
	return &MockExecutor{Commands: cmds}
}

// Calls returns the command strings executed so far.
func (m *MockExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockExecutor) ExecCmd(ctx context.Context, cmdStr string, opts Options) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmdStr)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	for _, c := range m.Commands {
		matched, err := regexp.MatchString(c.Pattern, cmdStr)
		if err != nil {
			return Result{}, fmt.Errorf("bad mock pattern %q: %w", c.Pattern, err)
		}
		if !matched {
			continue
		}
		if c.Error != nil {
			return Result{}, c.Error
		}
		res := Result{Stdout: c.Output, Stderr: c.Stderr, ExitCode: c.ExitCode}
		if c.ExitCode != 0 {
			return res, &ExitError{Cmd: cmdStr, ExitCode: c.ExitCode, Stderr: c.Stderr}
		}
		return res, nil
	}
	return Result{}, &ExitError{Cmd: cmdStr, ExitCode: 127, Stderr: "unexpected command for mock: " + cmdStr}
}
