package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/open-edge-platform/os-env-tracer/internal/utils/shell"
)

// Local runs commands on this host, optionally inside a chroot, through
// the shell executor.
type Local struct {
	ChrootPath string
	Sudo       bool

	executor shell.Executor
}

// NewLocal returns a session rooted at chrootPath; pass shell.HostPath for
// the running host.
func NewLocal(chrootPath string) *Local {
	return &Local{ChrootPath: chrootPath}
}

// WithExecutor overrides the executor, mainly for tests.
func (l *Local) WithExecutor(e shell.Executor) *Local {
	l.executor = e
	return l
}

func (l *Local) exec() shell.Executor {
	if l.executor != nil {
		return l.executor
	}
	return shell.Default
}

func (l *Local) ExecuteCommand(ctx context.Context, argv []string, opts ExecOptions) (string, string, error) {
	if len(argv) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	cmdStr, err := shell.QuoteArgs(argv)
	if err != nil {
		return "", "", err
	}
	res, err := l.exec().ExecCmd(ctx, cmdStr, shell.Options{
		Sudo:       l.Sudo,
		ChrootPath: l.ChrootPath,
		Env:        opts.Env,
		Dir:        opts.Dir,
	})
	if err == nil {
		return res.Stdout, res.Stderr, nil
	}

	var exitErr *shell.ExitError
	switch {
	case errors.As(err, &exitErr):
		return res.Stdout, res.Stderr, &CommandError{
			Argv: argv, ExitCode: exitErr.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr,
		}
	case ctx.Err() != nil:
		return res.Stdout, res.Stderr, &CommandError{
			Argv: argv, ExitCode: -1, Stdout: res.Stdout, Stderr: res.Stderr, Err: ctx.Err(),
		}
	default:
		return res.Stdout, res.Stderr, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// test runs `test <flag> path`; exit status 1 means false.
func (l *Local) test(ctx context.Context, flag, path string) (bool, error) {
	_, _, err := l.ExecuteCommand(ctx, []string{"test", flag, path}, ExecOptions{})
	if err == nil {
		return true, nil
	}
	if cmdErr, ok := IsCommandError(err); ok && cmdErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	return l.test(ctx, "-e", path)
}

func (l *Local) IsDir(ctx context.Context, path string) (bool, error) {
	return l.test(ctx, "-d", path)
}

func (l *Local) Read(ctx context.Context, path string) (string, error) {
	out, _, err := l.ExecuteCommand(ctx, []string{"cat", filepath.Clean(path)}, ExecOptions{})
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}
