package vcs

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
)

// Repo is a checkout handle cached by the Resolver.
type Repo interface {
	Kind() string
	Path() string
	// AllFiles lists the tracked files relative to Path, computed once.
	AllFiles(ctx context.Context) ([]string, error)
	// OwnsPath reports whether the absolute path is tracked, or is a
	// directory holding tracked files. The root itself is not owned.
	OwnsPath(ctx context.Context, p string) (bool, error)
}

// Prober finds the checkout of one VCS kind containing a directory.
type Prober interface {
	Kind() string
	// Probe looks for a checkout rooted at dir or above it.
	Probe(ctx context.Context, sess session.Session, dir string) (Repo, bool, error)
}

// Resolver maps paths to the checkouts owning them. Probers are asked in
// order. Checkouts of different kinds are assumed not to interleave: the
// first discovered claim on a tree wins.
type Resolver struct {
	sess    session.Session
	probers []Prober
	repos   map[string]Repo
	order   []string
}

// NewResolver returns a resolver asking probers in order.
func NewResolver(sess session.Session, probers ...Prober) *Resolver {
	return &Resolver{sess: sess, probers: probers, repos: map[string]Repo{}}
}

// Repos returns the cached checkouts in discovery order.
func (r *Resolver) Repos() []Repo {
	out := make([]Repo, len(r.order))
	for i, root := range r.order {
		out[i] = r.repos[root]
	}
	return out
}

// Resolve returns the checkout owning p, or nil when none does. Relative
// paths are never owned.
//
// A file directly inside a cached root is attributed to that checkout
// without asking whether it is tracked, so results depend on call order:
// an untracked /r/x is unowned before /r is cached and owned after.
func (r *Resolver) Resolve(ctx context.Context, p string) (Repo, error) {
	if !path.IsAbs(p) {
		return nil, nil
	}
	p = path.Clean(p)
	isDir, err := r.sess.IsDir(ctx, p)
	if err != nil {
		return nil, err
	}
	dir := p
	if !isDir {
		dir = path.Dir(p)
		if repo, ok := r.repos[dir]; ok {
			return repo, nil
		}
	} else if repo, ok := r.repos[p]; ok {
		return repo, nil
	}

	if repo, err := r.cached(ctx, p); repo != nil || err != nil {
		return repo, err
	}

	for _, prober := range r.probers {
		repo, ok, err := prober.Probe(ctx, r.sess, dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, known := r.repos[repo.Path()]; !known {
			r.repos[repo.Path()] = repo
			r.order = append(r.order, repo.Path())
		}
		repo = r.repos[repo.Path()]
		if repo.Path() == p {
			return repo, nil
		}
		owns, err := repo.OwnsPath(ctx, p)
		if err != nil || !owns {
			return nil, err
		}
		return repo, nil
	}
	return nil, nil
}

// cached returns the deepest cached checkout owning p.
func (r *Resolver) cached(ctx context.Context, p string) (Repo, error) {
	var roots []string
	for _, root := range r.order {
		if isUnder(p, root) {
			roots = append(roots, root)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool { return len(roots[i]) > len(roots[j]) })
	for _, root := range roots {
		repo := r.repos[root]
		owns, err := repo.OwnsPath(ctx, p)
		if err != nil {
			return nil, err
		}
		if owns {
			return repo, nil
		}
	}
	return nil, nil
}

func isUnder(p, root string) bool {
	if root == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, root+"/")
}

func relative(root, p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
}

// listing implements the file-set half of Repo.
type listing struct {
	root   string
	list   func(ctx context.Context) ([]string, error)
	files  []string
	set    map[string]bool
	dirs   map[string]bool
	loaded bool
}

func (l *listing) Path() string { return l.root }

func (l *listing) AllFiles(ctx context.Context) ([]string, error) {
	if l.loaded {
		return l.files, nil
	}
	files, err := l.list(ctx)
	if err != nil {
		return nil, err
	}
	l.files, l.set, l.dirs = files, map[string]bool{}, map[string]bool{}
	for _, f := range files {
		l.set[f] = true
		for d := path.Dir(f); d != "." && d != "/"; d = path.Dir(d) {
			l.dirs[d] = true
		}
	}
	l.loaded = true
	return l.files, nil
}

func (l *listing) OwnsPath(ctx context.Context, p string) (bool, error) {
	if !isUnder(path.Clean(p), l.root) {
		return false, nil
	}
	if _, err := l.AllFiles(ctx); err != nil {
		return false, err
	}
	rel := relative(l.root, path.Clean(p))
	return l.set[rel] || l.dirs[rel], nil
}
