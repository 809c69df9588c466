package vcs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/session/sessiontest"
)

func toplevel(dir, root string) sessiontest.Command {
	return sessiontest.Command{Prefix: []string{"git", "rev-parse", "--show-toplevel"}, Dir: dir, Stdout: root + "\n"}
}

func checkouts() *sessiontest.Session {
	sess := sessiontest.New().AddDir("/r", "/r/src", "/r/sub", "/svn/wc")
	sess.On(toplevel("/r", "/r"))
	sess.On(toplevel("/r/src", "/r"))
	sess.On(toplevel("/r/sub", "/r/sub"))
	sess.On(toplevel("/r/sub/deep", "/r/sub"))
	sess.On(sessiontest.Command{
		Prefix: []string{"git", "rev-parse", "--show-toplevel"}, ExitCode: 128,
		Stderr: "fatal: not a git repository (or any of the parent directories): .git",
	})
	sess.On(sessiontest.Command{Prefix: []string{"git", "ls-files", "-z"}, Dir: "/r",
		Stdout: "a.txt\x00src/main.go\x00sub/deep/y\x00"})
	sess.On(sessiontest.Command{Prefix: []string{"git", "ls-files", "-z"}, Dir: "/r/sub", Stdout: "x\x00deep/y\x00"})
	sess.On(sessiontest.Command{Prefix: []string{"git", "rev-list"}, Dir: "/r", Stdout: "1111\n0000\n"})
	sess.On(sessiontest.Command{Prefix: []string{"git", "rev-parse", "HEAD"}, Dir: "/r", Stdout: "abcd\n"})
	sess.On(sessiontest.Command{Prefix: []string{"git", "rev-parse", "--abbrev-ref"}, Dir: "/r", Stdout: "main\n"})
	sess.On(sessiontest.Command{Prefix: []string{"git", "describe"}, Dir: "/r", Stdout: "v1.0-3-gabcd\n"})
	sess.On(sessiontest.Command{Prefix: []string{"git", "config"}, Dir: "/r", Stdout: "https://example.com/r.git\n"})
	sess.On(sessiontest.Command{Prefix: []string{"svn", "info", "--show-item", "wc-root"}, Dir: "/svn/wc", Stdout: "/svn/wc\n"})
	sess.On(sessiontest.Command{Prefix: []string{"svn", "info", "--show-item", "repos-uuid"}, Dir: "/svn/wc", Stdout: "u-u-i-d\n"})
	sess.On(sessiontest.Command{Prefix: []string{"svn", "info", "--show-item", "revision"}, Dir: "/svn/wc", Stdout: "42\n"})
	sess.On(sessiontest.Command{Prefix: []string{"svn", "info", "--show-item", "url"}, Dir: "/svn/wc", Stdout: "svn://example.com/trunk\n"})
	sess.On(sessiontest.Command{Prefix: []string{"svn", "list", "-R"}, Dir: "/svn/wc", Stdout: "file.c\ndir/\ndir/h.h\n"})
	return sess
}

func resolvedRoot(t *testing.T, r *Resolver, p string) string {
	t.Helper()
	repo, err := r.Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", p, err)
	}
	if repo == nil {
		return ""
	}
	return repo.Kind() + ":" + repo.Path()
}

func TestResolver(t *testing.T) {
	sess := checkouts()
	r := NewResolver(sess, gitProber{}, svnProber{})

	tests := []struct {
		path, want string
	}{
		{"/r/src/main.go", "git:/r"},
		{"/r/sub/x", "git:/r/sub"},
		{"/r/sub/x", "git:/r/sub"},
		{"/r/sub/deep/y", "git:/r/sub"},
		{"/r/untracked.txt", "git:/r"},
		{"/r/src/new.go", ""},
		{"/r", "git:/r"},
		{"/r/src", "git:/r"},
		{"/svn/wc/file.c", "svn:/svn/wc"},
		{"/svn/wc/dir/h.h", "svn:/svn/wc"},
		{"/tmp/x", ""},
	}
	for _, tt := range tests {
		if got := resolvedRoot(t, r, tt.path); got != tt.want {
			t.Errorf("Resolve(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}

	if got := len(sess.CallsWith("git", "ls-files")); got != 2 {
		t.Errorf("each checkout must be listed once, got %d listings", got)
	}
	var roots []string
	for _, repo := range r.Repos() {
		roots = append(roots, repo.Path())
	}
	if diff := cmp.Diff([]string{"/r", "/r/sub", "/svn/wc"}, roots); diff != "" {
		t.Errorf("cached roots mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverDependsOnOrder(t *testing.T) {
	r := NewResolver(checkouts(), gitProber{})
	if got := resolvedRoot(t, r, "/r/untracked.txt"); got != "" {
		t.Errorf("untracked file resolved before its root was known: %q", got)
	}
	if got := resolvedRoot(t, r, "/r/untracked.txt"); got != "git:/r" {
		t.Errorf("file directly inside a cached root = %q, want %q", got, "git:/r")
	}
}

func TestResolverRootNotOwned(t *testing.T) {
	r := NewResolver(checkouts(), gitProber{})
	if _, err := r.Resolve(context.Background(), "/r/a.txt"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	owns, err := r.Repos()[0].OwnsPath(context.Background(), "/r")
	if err != nil || owns {
		t.Errorf("the root is never an owned path, got %v, %v", owns, err)
	}
}

func TestResolverSessionFailure(t *testing.T) {
	sess := sessiontest.New().On(sessiontest.Command{Prefix: []string{"git"}, Err: session.ErrUnavailable})
	_, err := NewResolver(sess, gitProber{}).Resolve(context.Background(), "/r/a.txt")
	if !errors.Is(err, session.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestIdentifyDistributions(t *testing.T) {
	files := []string{"/r/src/main.go", "/r", "/svn/wc/file.c", "/tmp/x", "/r/sub/x"}
	results, err := NewTracer(checkouts()).IdentifyDistributions(context.Background(), files)
	if err != nil {
		t.Fatalf("IdentifyDistributions: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected git and svn distributions, got %d", len(results))
	}

	git := results[0].Distribution.(*GitDistribution)
	want := []*GitRepo{
		{Path: "/r", RootHexsha: "0000", Hexsha: "abcd", Describe: "v1.0-3-gabcd", Branch: "main",
			Remote: "https://example.com/r.git", Files: []string{"src/main.go"}},
		{Path: "/r/sub", Files: []string{"x"}},
	}
	if diff := cmp.Diff(want, git.Packages); diff != "" {
		t.Errorf("git repos mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/svn/wc/file.c", "/tmp/x"}, results[0].Remaining); diff != "" {
		t.Errorf("remaining after git mismatch (-want +got):\n%s", diff)
	}

	svn := results[1].Distribution.(*SVNDistribution)
	if len(svn.Packages) != 1 || svn.Packages[0].UUID != "u-u-i-d" || svn.Packages[0].Revision != "42" {
		t.Errorf("unexpected svn repos: %+v", svn.Packages)
	}
	if diff := cmp.Diff([]string{"/tmp/x"}, results[1].Remaining); diff != "" {
		t.Errorf("remaining after svn mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/r/src/main.go", "/r/sub/x"}, git.Files()); diff != "" {
		t.Errorf("absolute files mismatch (-want +got):\n%s", diff)
	}
}

func TestInstallCommands(t *testing.T) {
	git := &GitDistribution{repoDistribution[*GitRepo]{Name: GitTag, Packages: []*GitRepo{
		{Path: "/src/r", Remote: "https://example.com/r.git", Hexsha: "abcd"},
		{Path: "/src/local"},
	}}}
	want := [][]string{
		{"git", "clone", "https://example.com/r.git", "/src/r"},
		{"git", "-C", "/src/r", "checkout", "abcd"},
	}
	if diff := cmp.Diff(want, git.InstallCommands()); diff != "" {
		t.Errorf("git InstallCommands mismatch (-want +got):\n%s", diff)
	}

	svn := &SVNDistribution{repoDistribution[*SVNRepo]{Name: SVNTag, Packages: []*SVNRepo{
		{Path: "/src/wc", URL: "svn://example.com/trunk", Revision: "42"},
	}}}
	if diff := cmp.Diff([][]string{{"svn", "checkout", "-r", "42", "svn://example.com/trunk", "/src/wc"}}, svn.InstallCommands()); diff != "" {
		t.Errorf("svn InstallCommands mismatch (-want +got):\n%s", diff)
	}
}
