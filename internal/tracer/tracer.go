// Package tracer maps files to the distributions that explain them: the
// command batcher, the package grouping engine and the convergence loop
// running every backend tracer to a fixed point.
package tracer

import (
	"context"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

// Result is one distribution found by a tracer together with the files
// still unexplained after it. Remaining may contain paths the tracer
// discovered and hands back for other tracers to claim.
type Result struct {
	Distribution spec.Distribution
	Remaining    []string
}

// Tracer identifies the distributions of one backend.
type Tracer interface {
	Name() string
	// HandlesDirs reports whether directories may be passed in.
	HandlesDirs() bool
	// IdentifyDistributions claims files. A backend absent from the host
	// returns no results and no error. Each result's Remaining replaces the
	// working set for the next result.
	IdentifyDistributions(ctx context.Context, files []string) ([]Result, error)
}
