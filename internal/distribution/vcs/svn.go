package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
)

// svnProber finds subversion working copies with svn info.
type svnProber struct{}

func (svnProber) Kind() string { return SVNTag }

func (svnProber) Probe(ctx context.Context, sess session.Session, dir string) (Repo, bool, error) {
	out, err := run(ctx, sess, dir, "svn", "info", "--show-item", "wc-root")
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
	repo := &svnHandle{sess: sess}
	repo.listing = listing{root: root, list: repo.list}
	return repo, true, nil
}

type svnHandle struct {
	listing
	sess session.Session
}

func (s *svnHandle) Kind() string { return SVNTag }

func (s *svnHandle) list(ctx context.Context) ([]string, error) {
	out, err := run(ctx, s.sess, s.root, "svn", "list", "-R")
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", s.root, err)
	}
	var files []string
	for _, f := range strings.Split(out, "\n") {
		f = strings.TrimSuffix(strings.TrimSpace(f), "/")
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

func (s *svnHandle) describe(ctx context.Context) (*SVNRepo, error) {
	repo := &SVNRepo{Path: s.root}
	for _, q := range []struct {
		field *string
		item  string
	}{
		{&repo.UUID, "repos-uuid"},
		{&repo.Revision, "revision"},
		{&repo.URL, "url"},
	} {
		out, err := run(ctx, s.sess, s.root, "svn", "info", "--show-item", q.item)
		if err != nil {
			if notFound(ctx, err) {
				continue
			}
			return nil, err
		}
		*q.field = strings.TrimSpace(out)
	}
	return repo, nil
}
