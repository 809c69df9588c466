package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
)

// gitProber finds git working trees with git rev-parse.
type gitProber struct{}

func (gitProber) Kind() string { return GitTag }

func (gitProber) Probe(ctx context.Context, sess session.Session, dir string) (Repo, bool, error) {
	out, err := run(ctx, sess, dir, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		if notFound(ctx, err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	root := strings.TrimSpace(out)
	if root == "" {
		return nil, false, nil
	}
	repo := &gitHandle{sess: sess}
	repo.listing = listing{root: root, list: repo.lsFiles}
	return repo, true, nil
}

type gitHandle struct {
	listing
	sess session.Session
}

func (g *gitHandle) Kind() string { return GitTag }

func (g *gitHandle) lsFiles(ctx context.Context) ([]string, error) {
	out, err := run(ctx, g.sess, g.root, "git", "ls-files", "-z")
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", g.root, err)
	}
	var files []string
	for _, f := range strings.Split(out, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// describe collects the checkout metadata. Queries failing inside the
// repository, e.g. for a missing remote, leave their field empty.
func (g *gitHandle) describe(ctx context.Context) (*GitRepo, error) {
	repo := &GitRepo{Path: g.root}
	queries := []struct {
		field *string
		argv  []string
	}{
		{&repo.RootHexsha, []string{"git", "rev-list", "--max-parents=0", "HEAD"}},
		{&repo.Hexsha, []string{"git", "rev-parse", "HEAD"}},
		{&repo.Describe, []string{"git", "describe", "--always", "--tags", "--dirty"}},
		{&repo.Branch, []string{"git", "rev-parse", "--abbrev-ref", "HEAD"}},
		{&repo.Remote, []string{"git", "config", "--get", "remote.origin.url"}},
	}
	for _, q := range queries {
		out, err := run(ctx, g.sess, g.root, q.argv...)
		if err != nil {
			if notFound(ctx, err) {
				continue
			}
			return nil, err
		}
		// several roots are possible after merges of unrelated histories
		lines := strings.Fields(out)
		if len(lines) > 0 {
			*q.field = lines[len(lines)-1]
		}
	}
	return repo, nil
}

func run(ctx context.Context, sess session.Session, dir string, argv ...string) (string, error) {
	out, _, err := sess.ExecuteCommand(ctx, argv, session.ExecOptions{Dir: dir})
	return out, err
}

// notFound reports whether err is a failing command rather than a broken
// session or cancellation.
func notFound(ctx context.Context, err error) bool {
	_, ok := session.IsCommandError(err)
	return ok && ctx.Err() == nil
}
