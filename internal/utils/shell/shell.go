package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"mvdan.cc/sh/v3/syntax"
)

var (
	HostPath string = ""
)

// Options controls how a command string is wrapped before execution.
type Options struct {
	Sudo       bool
	ChrootPath string
	Env        []string // KEY=VALUE pairs prefixed to the command
	Dir        string   // working directory, empty for the current one
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError reports a command which ran but exited non-zero.
type ExitError struct {
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Cmd, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Executor runs shell command strings.
type Executor interface {
	ExecCmd(ctx context.Context, cmdStr string, opts Options) (Result, error)
}

// DefaultExecutor runs commands through the host shell.
type DefaultExecutor struct{}

// Default is the executor used by ExecCmd. Tests replace it with a
// MockExecutor.
var Default Executor = &DefaultExecutor{}

// ExecCmd executes cmdStr with the Default executor.
func ExecCmd(ctx context.Context, cmdStr string, opts Options) (Result, error) {
	return Default.ExecCmd(ctx, cmdStr, opts)
}

// GetOSEnvirons returns the system environment variables
func GetOSEnvirons() map[string]string {
	environ := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			environ[parts[0]] = parts[1]
		}
	}
	return environ
}

// GetOSProxyEnvirons retrieves HTTP and HTTPS proxy environment variables
func GetOSProxyEnvirons() map[string]string {
	osEnv := GetOSEnvirons()
	proxyEnv := make(map[string]string)

	for key, value := range osEnv {
		if strings.Contains(strings.ToLower(key), "http_proxy") ||
			strings.Contains(strings.ToLower(key), "https_proxy") {
			proxyEnv[key] = value
		}
	}

	return proxyEnv
}

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

// QuoteArgs joins argv into a single command string, quoting every word
// that the shell would otherwise split or expand.
func QuoteArgs(argv []string) (string, error) {
	words := make([]string, 0, len(argv))
	for _, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quoting argument %q: %w", arg, err)
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}

// IsCommandExist checks if a command exists in the system or in a chroot environment
func IsCommandExist(ctx context.Context, cmd string, chrootPath string) (bool, error) {
	res, err := ExecCmd(ctx, "command -v "+cmd, Options{ChrootPath: chrootPath, Sudo: chrootPath != HostPath})
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// GetFullCmdStr prepares a command string with necessary prefixes
func GetFullCmdStr(cmdStr string, opts Options) (string, error) {
	var fullCmdStr string
	log := logger.Logger()
	envValStr := ""
	for _, env := range opts.Env {
		envValStr += env + " "
	}

	if opts.ChrootPath != HostPath {
		if _, err := os.Stat(opts.ChrootPath); os.IsNotExist(err) {
			return cmdStr, fmt.Errorf("chroot path %s does not exist", opts.ChrootPath)
		}

		proxyEnv := GetOSProxyEnvirons()
		for key, value := range proxyEnv {
			envValStr += key + "=" + value + " "
		}

		inner := cmdStr
		if opts.Dir != "" {
			inner = "cd " + opts.Dir + " && " + cmdStr
		}
		inner, err := QuoteArgs([]string{inner})
		if err != nil {
			return cmdStr, err
		}
		fullCmdStr = "sudo " + envValStr + "chroot " + opts.ChrootPath + " /bin/sh -c " + inner
		chrootDir := filepath.Base(opts.ChrootPath)
		log.Debugf("Chroot %s Exec: [%s]", chrootDir, cmdStr)
	} else {
		if opts.Sudo {
			proxyEnv := GetOSProxyEnvirons()
			for key, value := range proxyEnv {
				envValStr += key + "=" + value + " "
			}
			fullCmdStr = "sudo " + envValStr + cmdStr
			log.Debugf("Exec: [sudo %s]", cmdStr)
		} else {
			fullCmdStr = envValStr + cmdStr
			log.Debugf("Exec: [%s]", cmdStr)
		}
	}

	return fullCmdStr, nil
}

// ExecCmd executes a command and returns its separated output
func (d *DefaultExecutor) ExecCmd(ctx context.Context, cmdStr string, opts Options) (Result, error) {
	log := logger.Logger()
	fullCmdStr, err := GetFullCmdStr(cmdStr, opts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get full command string: %w", err)
	}

	cmd := exec.CommandContext(ctx, getShell(), "-c", fullCmdStr)
	if opts.ChrootPath == HostPath && opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("failed to exec %s: %w", cmdStr, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if res.Stderr != "" {
				log.Debugf(res.Stderr)
			}
			return res, &ExitError{Cmd: cmdStr, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		return res, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	return res, nil
}
