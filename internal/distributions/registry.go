// Package distributions wires the backends together: the document
// registry, the tracer set and the retrace entry point.
package distributions

import (
	"fmt"

	"github.com/open-edge-platform/os-env-tracer/internal/config"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/conda"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/debian"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/docker"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/redhat"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/vcs"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/venv"
	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
)

var constructors = []struct {
	tag  string
	ctor spec.Constructor
}{
	{debian.Tag, debian.New},
	{redhat.Tag, redhat.New},
	{conda.Tag, conda.New},
	{venv.Tag, venv.New},
	{vcs.GitTag, vcs.NewGit},
	{vcs.SVNTag, vcs.NewSVN},
	{docker.Tag, docker.New},
}

// NewRegistry returns a registry knowing every backend's document tag.
func NewRegistry() *spec.Registry {
	reg := spec.NewRegistry()
	for _, c := range constructors {
		// tags above are distinct, Register cannot fail
		_ = reg.Register(c.tag, c.ctor)
	}
	return reg
}

// NewTracers returns fresh tracer instances in the order cfg lists them.
// Instances carry per-run caches and must not be shared between runs.
func NewTracers(sess session.Session, cfg *config.GlobalConfig) ([]tracer.Tracer, error) {
	h := config.NewConfigHelpers(cfg)
	opts := tracer.BatchOptions{MaxCmdLen: h.MaxCmdLen(), Workers: h.Workers()}

	tags := h.Tracers()
	if tags == nil {
		tags = config.DefaultTracers
	}
	tracers := make([]tracer.Tracer, 0, len(tags))
	for _, tag := range tags {
		switch tag {
		case debian.Tag:
			tracers = append(tracers, debian.NewTracer(sess, opts))
		case redhat.Tag:
			tracers = append(tracers, redhat.NewTracer(sess, opts))
		case conda.Tag:
			tracers = append(tracers, conda.NewTracer(sess, opts))
		case venv.Tag:
			tracers = append(tracers, venv.NewTracer(sess, opts))
		case "vcs":
			tracers = append(tracers, vcs.NewTracer(sess))
		case docker.Tag:
			tracers = append(tracers, docker.NewTracer(sess, opts))
		default:
			return nil, fmt.Errorf("unknown tracer %q", tag)
		}
	}
	return tracers, nil
}
