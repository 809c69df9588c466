package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/os-env-tracer/internal/utils/shell"
)

func TestLocalExecuteCommandQuotesArgv(t *testing.T) {
	mock := shell.NewMockExecutor(
		shell.MockCommand{Pattern: `^dpkg-query -S '/tmp/a b'$`, Output: "pkg: /tmp/a b\n"},
	)
	sess := NewLocal(shell.HostPath).WithExecutor(mock)

	out, _, err := sess.ExecuteCommand(context.Background(), []string{"dpkg-query", "-S", "/tmp/a b"}, ExecOptions{})
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}
	if out != "pkg: /tmp/a b\n" {
		t.Errorf("unexpected stdout %q", out)
	}
}

func TestLocalExecuteCommandErrors(t *testing.T) {
	tests := []struct {
		name        string
		mock        shell.MockCommand
		wantCmdErr  bool
		wantExit    int
		unavailable bool
	}{
		{name: "non-zero exit", mock: shell.MockCommand{Pattern: "rpm", ExitCode: 1, Stderr: "not owned"}, wantCmdErr: true, wantExit: 1},
		{name: "transport failure", mock: shell.MockCommand{Pattern: "rpm", Error: errors.New("broken pipe")}, unavailable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := NewLocal(shell.HostPath).WithExecutor(shell.NewMockExecutor(tt.mock))
			_, _, err := sess.ExecuteCommand(context.Background(), []string{"rpm", "-qf", "/x"}, ExecOptions{})
			cmdErr, ok := IsCommandError(err)
			if ok != tt.wantCmdErr {
				t.Fatalf("IsCommandError = %v, want %v (err %v)", ok, tt.wantCmdErr, err)
			}
			if ok && cmdErr.ExitCode != tt.wantExit {
				t.Errorf("exit code %d, want %d", cmdErr.ExitCode, tt.wantExit)
			}
			if errors.Is(err, ErrUnavailable) != tt.unavailable {
				t.Errorf("errors.Is(ErrUnavailable) = %v, want %v", !tt.unavailable, tt.unavailable)
			}
		})
	}
}

func TestLocalFileOperations(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "debian_version")
	if err := os.WriteFile(file, []byte("12.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sess := NewLocal(shell.HostPath).WithExecutor(&shell.DefaultExecutor{})
	ctx := context.Background()

	if ok, err := sess.Exists(ctx, file); err != nil || !ok {
		t.Errorf("Exists(%s) = %v, %v", file, ok, err)
	}
	if ok, err := sess.Exists(ctx, filepath.Join(dir, "missing")); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
	if ok, err := sess.IsDir(ctx, dir); err != nil || !ok {
		t.Errorf("IsDir(%s) = %v, %v", dir, ok, err)
	}
	if ok, err := sess.IsDir(ctx, file); err != nil || ok {
		t.Errorf("IsDir(file) = %v, %v", ok, err)
	}
	content, err := sess.Read(ctx, file)
	if err != nil || content != "12.5\n" {
		t.Errorf("Read = %q, %v", content, err)
	}
	if _, err := sess.Read(ctx, filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error reading a missing file")
	}
}
