package distributions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/open-edge-platform/os-env-tracer/internal/config"
	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/system"
)

// Options tunes a retrace run.
type Options struct {
	Config   *config.GlobalConfig
	Observer func(tracer.Event)
	// ReportDir, when set, receives a text report of the files left
	// unresolved. It overrides the configured trace.reportDir.
	ReportDir string
}

// Result is the outcome of a retrace run.
type Result struct {
	RunID      string
	Spec       *spec.EnvironmentSpec
	State      tracer.LoopState
	Rounds     int
	ReportPath string
}

// Retrace traces files through every configured backend and assembles the
// environment specification. On a fatal loop error the partial result is
// returned together with the error.
func Retrace(ctx context.Context, sess session.Session, files []string, opts Options) (*Result, error) {
	runID := uuid.NewString()
	log := logger.Logger().With("run", runID)
	h := config.NewConfigHelpers(opts.Config)

	tracers, err := NewTracers(sess, h.GetConfig())
	if err != nil {
		return nil, err
	}
	log.Infof("retracing %d files with %d tracers", len(files), len(tracers))

	loop := &tracer.Loop{
		Session:       sess,
		Tracers:       tracers,
		MaxIterations: h.MaxIterations(),
		Observer:      opts.Observer,
		Logger:        log,
	}
	lr, loopErr := loop.Run(ctx, files)
	if lr == nil {
		return nil, loopErr
	}

	dists, err := spec.MergeDistributions(lr.Distributions)
	if err != nil {
		return nil, fmt.Errorf("merging distributions: %w", err)
	}
	res := &Result{
		RunID:  runID,
		Spec:   &spec.EnvironmentSpec{Distributions: dists, Files: lr.Remaining},
		State:  lr.State,
		Rounds: lr.Rounds,
	}
	if loopErr != nil {
		return res, loopErr
	}

	base, err := system.DetectBase(ctx, sess)
	if err != nil {
		return res, fmt.Errorf("detecting base system: %w", err)
	}
	res.Spec.Base = base

	reportDir := opts.ReportDir
	if reportDir == "" {
		if reportDir, err = h.ReportDir(); err != nil {
			return res, fmt.Errorf("resolving report directory: %w", err)
		}
	}
	if reportDir != "" && len(lr.Remaining) > 0 {
		path, err := logger.WriteListToFile(reportDir, logger.StringListReport{
			Title: "loose files " + runID,
			Items: lr.Remaining,
		})
		if err != nil {
			return res, fmt.Errorf("writing unresolved file report: %w", err)
		}
		res.ReportPath = path
		log.Infof("%d unresolved files listed in %s", len(lr.Remaining), path)
	}
	log.Infof("retrace %s after %d rounds: %d distributions, %d unresolved files",
		lr.State, lr.Rounds, len(dists), len(lr.Remaining))
	return res, nil
}
