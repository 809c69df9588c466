// Package sessiontest provides a scripted in-memory session for tracer
// tests.
package sessiontest

import (
	"context"
	"strings"
	"sync"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
)

// Command scripts the response to every invocation whose argv starts with
// Prefix (and runs in Dir, when set). Run, if set, computes the response
// from the full argv.
type Command struct {
	Prefix   []string
	Dir      string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	Run      func(argv []string) (stdout, stderr string, exitCode int)
}

// Session is an in-memory session.Session. Files maps paths to contents,
// Dirs lists directories. Commands are matched in order; unmatched
// commands fail with exit code 127.
type Session struct {
	Files    map[string]string
	Dirs     map[string]bool
	Commands []Command

	mu    sync.Mutex
	calls [][]string
}

// New returns an empty session.
func New() *Session {
	return &Session{Files: map[string]string{}, Dirs: map[string]bool{}}
}

// AddFile registers path with content.
func (s *Session) AddFile(path, content string) *Session {
	s.Files[path] = content
	return s
}

// AddDir registers path as a directory.
func (s *Session) AddDir(paths ...string) *Session {
	for _, p := range paths {
		s.Dirs[p] = true
	}
	return s
}

// On appends a scripted command.
func (s *Session) On(c Command) *Session {
	s.Commands = append(s.Commands, c)
	return s
}

// Calls returns every argv executed so far.
func (s *Session) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsWith returns the executed argvs starting with prefix.
func (s *Session) CallsWith(prefix ...string) [][]string {
	var out [][]string
	for _, c := range s.Calls() {
		if hasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func hasPrefix(argv, prefix []string) bool {
	if len(prefix) > len(argv) {
		return false
	}
	for i, p := range prefix {
		if argv[i] != p {
			return false
		}
	}
	return true
}

func (s *Session) ExecuteCommand(ctx context.Context, argv []string, opts session.ExecOptions) (string, string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), argv...))
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", "", &session.CommandError{Argv: argv, ExitCode: -1, Err: err}
	}
	for _, c := range s.Commands {
		if !hasPrefix(argv, c.Prefix) || (c.Dir != "" && c.Dir != opts.Dir) {
			continue
		}
		if c.Err != nil {
			return "", "", c.Err
		}
		stdout, stderr, code := c.Stdout, c.Stderr, c.ExitCode
		if c.Run != nil {
			stdout, stderr, code = c.Run(argv)
		}
		if code != 0 {
			return stdout, stderr, &session.CommandError{Argv: argv, ExitCode: code, Stdout: stdout, Stderr: stderr}
		}
		return stdout, stderr, nil
	}
	stderr := "command not found: " + strings.Join(argv, " ")
	return "", stderr, &session.CommandError{Argv: argv, ExitCode: 127, Stderr: stderr}
}

func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	if _, ok := s.Files[path]; ok {
		return true, nil
	}
	return s.Dirs[path], nil
}

func (s *Session) IsDir(ctx context.Context, path string) (bool, error) {
	return s.Dirs[path], nil
}

func (s *Session) Read(ctx context.Context, path string) (string, error) {
	content, ok := s.Files[path]
	if !ok {
		return "", &session.CommandError{
			Argv: []string{"cat", path}, ExitCode: 1,
			Stderr: "cat: " + path + ": No such file or directory",
		}
	}
	return content, nil
}
