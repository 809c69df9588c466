package vcs

import (
	"context"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
)

// Tracer attributes files to the git and subversion checkouts tracking
// them. A checkout root passed in is consumed without becoming a file.
type Tracer struct {
	resolver *Resolver
	git      map[string]*GitRepo
	svn      map[string]*SVNRepo
}

// NewTracer probes git before svn.
func NewTracer(sess session.Session) *Tracer {
	return &Tracer{
		resolver: NewResolver(sess, gitProber{}, svnProber{}),
		git:      map[string]*GitRepo{},
		svn:      map[string]*SVNRepo{},
	}
}

func (t *Tracer) Name() string      { return "vcs" }
func (t *Tracer) HandlesDirs() bool { return true }

func (t *Tracer) IdentifyDistributions(ctx context.Context, files []string) ([]tracer.Result, error) {
	log := logger.Logger()
	gitDist := NewGit().(*GitDistribution)
	svnDist := NewSVN().(*SVNDistribution)
	gitRepos := map[string]*GitRepo{}
	svnRepos := map[string]*SVNRepo{}
	claimedBy := map[string]string{}

	for _, f := range files {
		repo, err := t.resolver.Resolve(ctx, f)
		if err != nil {
			return nil, err
		}
		if repo == nil {
			continue
		}
		root := repo.Path()
		claimedBy[f] = repo.Kind()

		switch h := repo.(type) {
		case *gitHandle:
			pkg, ok := gitRepos[root]
			if !ok {
				meta, err := t.gitMeta(ctx, h)
				if err != nil {
					return nil, err
				}
				pkg = &GitRepo{}
				*pkg = *meta
				gitRepos[root] = pkg
				gitDist.Packages = append(gitDist.Packages, pkg)
			}
			if f != root {
				pkg.Files = append(pkg.Files, relative(root, f))
			}
		case *svnHandle:
			pkg, ok := svnRepos[root]
			if !ok {
				meta, err := t.svnMeta(ctx, h)
				if err != nil {
					return nil, err
				}
				pkg = &SVNRepo{}
				*pkg = *meta
				svnRepos[root] = pkg
				svnDist.Packages = append(svnDist.Packages, pkg)
			}
			if f != root {
				pkg.Files = append(pkg.Files, relative(root, f))
			}
		}
	}

	var results []tracer.Result
	done := map[string]bool{}
	emit := func(kind string, dist spec.Distribution, n int) {
		if n == 0 {
			return
		}
		dist.Normalize()
		var remaining []string
		for _, f := range files {
			if claimedBy[f] == kind {
				done[f] = true
			}
			if !done[f] {
				remaining = append(remaining, f)
			}
		}
		log.Infof("%d %s checkouts own %d files", n, kind, len(files)-len(remaining))
		results = append(results, tracer.Result{Distribution: dist, Remaining: remaining})
	}
	emit(GitTag, gitDist, len(gitDist.Packages))
	emit(SVNTag, svnDist, len(svnDist.Packages))
	return results, nil
}

func (t *Tracer) gitMeta(ctx context.Context, h *gitHandle) (*GitRepo, error) {
	if meta, ok := t.git[h.Path()]; ok {
		return meta, nil
	}
	meta, err := h.describe(ctx)
	if err != nil {
		return nil, err
	}
	t.git[h.Path()] = meta
	return meta, nil
}

func (t *Tracer) svnMeta(ctx context.Context, h *svnHandle) (*SVNRepo, error) {
	if meta, ok := t.svn[h.Path()]; ok {
		return meta, nil
	}
	meta, err := h.describe(ctx)
	if err != nil {
		return nil, err
	}
	t.svn[h.Path()] = meta
	return meta, nil
}
