package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
)

// inspectRecord is the part of docker image inspect output we read.
type inspectRecord struct {
	ID           string   `json:"Id"`
	RepoTags     []string `json:"RepoTags"`
	RepoDigests  []string `json:"RepoDigests"`
	Created      string   `json:"Created"`
	OS           string   `json:"Os"`
	Architecture string   `json:"Architecture"`
	Size         int64    `json:"Size"`
}

// matches reports whether ref names the image.
func (r *inspectRecord) matches(ref string) bool {
	if ref == r.ID || strings.TrimPrefix(r.ID, "sha256:") == ref {
		return true
	}
	if slices.Contains(r.RepoTags, ref) || slices.Contains(r.RepoDigests, ref) {
		return true
	}
	// an untagged reference means :latest
	if !strings.ContainsAny(ref, ":@") {
		return slices.Contains(r.RepoTags, ref+":latest")
	}
	return false
}

// Tracer resolves docker-image: paths with docker image inspect.
type Tracer struct {
	sess session.Session
	opts tracer.BatchOptions
}

func NewTracer(sess session.Session, opts tracer.BatchOptions) *Tracer {
	return &Tracer{sess: sess, opts: opts}
}

func (t *Tracer) Name() string      { return Tag }
func (t *Tracer) HandlesDirs() bool { return false }

func (t *Tracer) IdentifyDistributions(ctx context.Context, files []string) ([]tracer.Result, error) {
	var refs []string
	for _, f := range files {
		if ref, ok := strings.CutPrefix(f, PathPrefix); ok && ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}

	opts := t.opts
	// exit 1 with partial output when some references are unknown
	opts.Accept = func(e *session.CommandError) bool { return e.ExitCode == 1 }
	results, err := tracer.Batch(ctx, t.sess, []string{"docker", "image", "inspect"}, refs, opts)
	if err != nil {
		if _, ok := session.IsCommandError(err); ok && ctx.Err() == nil {
			logger.Logger().Debugf("docker unavailable: %v", err)
			return nil, nil
		}
		return nil, err
	}

	var records []inspectRecord
	for _, r := range results {
		if strings.TrimSpace(r.Stdout) == "" {
			continue
		}
		var batch []inspectRecord
		if err := json.Unmarshal([]byte(r.Stdout), &batch); err != nil {
			return nil, fmt.Errorf("parsing docker image inspect output: %w", err)
		}
		records = append(records, batch...)
	}

	dist := &Distribution{Name: Tag}
	claimed := map[string]bool{}
	byID := map[string]*Image{}
	for _, ref := range refs {
		i := slices.IndexFunc(records, func(r inspectRecord) bool { return r.matches(ref) })
		if i < 0 || claimed[PathPrefix+ref] {
			continue
		}
		claimed[PathPrefix+ref] = true
		rec := records[i]
		if img, ok := byID[rec.ID]; ok {
			img.Refs = append(img.Refs, ref)
			continue
		}
		img := &Image{
			ID: rec.ID, Refs: []string{ref}, Tags: rec.RepoTags, Digests: rec.RepoDigests,
			Created: rec.Created, OS: rec.OS, Architecture: rec.Architecture, Size: rec.Size,
		}
		byID[rec.ID] = img
		dist.Images = append(dist.Images, img)
	}
	if len(dist.Images) == 0 {
		return nil, nil
	}
	dist.Normalize()

	var remaining []string
	for _, f := range files {
		if !claimed[f] {
			remaining = append(remaining, f)
		}
	}
	return []tracer.Result{{Distribution: dist, Remaining: remaining}}, nil
}
