package tracer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"go.uber.org/zap"
)

// DefaultMaxIterations bounds the number of rounds of the loop.
const DefaultMaxIterations = 10

// LoopState is the state of the convergence loop.
type LoopState int

const (
	Running LoopState = iota
	Converged
	IterationLimitReached
)

func (s LoopState) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationLimitReached:
		return "iteration limit reached"
	default:
		return "running"
	}
}

// Event is reported to the loop observer after each tracer invocation.
type Event struct {
	Round         int
	Tracer        string
	Distributions int
	Remaining     int
	Duration      time.Duration
}

// Loop runs tracers in rounds over a shrinking set of unresolved files
// until no tracer makes progress.
type Loop struct {
	Session       session.Session
	Tracers       []Tracer
	MaxIterations int
	Observer      func(Event)
	Logger        *zap.SugaredLogger
}

// LoopResult is the outcome of a loop run.
type LoopResult struct {
	Distributions []spec.Distribution
	Remaining     []string
	State         LoopState
	Rounds        int
}

func (l *Loop) log() *zap.SugaredLogger {
	if l.Logger != nil {
		return l.Logger
	}
	return logger.Logger()
}

// Run traces files. Hitting the iteration limit is not an error: the
// partial result is returned with State IterationLimitReached. Cancellation
// and an unreachable session abort the run; other tracer failures are
// logged and the tracer is skipped for that round.
func (l *Loop) Run(ctx context.Context, files []string) (*LoopResult, error) {
	log := l.log()
	maxIter := l.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	res := &LoopResult{State: Running}
	toConsider := newFileSet(files)
	dirs := map[string]bool{}

	for res.State == Running {
		if res.Rounds >= maxIter {
			log.Errorf("Tracing did not converge after %d iterations, %d files left unresolved",
				maxIter, toConsider.len())
			res.State = IterationLimitReached
			break
		}
		res.Rounds++
		before := toConsider.len()
		produced := false
		log.Infof("Entering iteration #%d over tracers with %d files", res.Rounds, before)

		for _, tr := range l.Tracers {
			begin := time.Now()
			toTrace, skipped, err := l.partition(ctx, tr, toConsider, dirs)
			if err != nil {
				return res, err
			}

			remaining := toTrace
			found := 0
			if toTrace.len() > 0 {
				results, err := tr.IdentifyDistributions(ctx, toTrace.list())
				if err != nil {
					if isFatal(ctx, err) {
						res.Remaining = toConsider.list()
						return res, fmt.Errorf("%s tracer: %w", tr.Name(), err)
					}
					log.Errorf("%s tracer failed, skipping it this round: %v", tr.Name(), err)
					results = nil
				}
				for _, r := range results {
					res.Distributions = append(res.Distributions, r.Distribution)
					remaining = newFileSet(r.Remaining)
					found++
				}
				if found > 0 {
					produced = true
				}
				log.Infof("%s: %d distributions with %d files remaining", tr.Name(), found, remaining.len())
			}

			toConsider = newFileSet(remaining.list(), skipped)
			log.Debugf("Assigning files to packages by %s took %s", tr.Name(), time.Since(begin))
			if l.Observer != nil {
				l.Observer(Event{
					Round: res.Rounds, Tracer: tr.Name(), Distributions: found,
					Remaining: toConsider.len(), Duration: time.Since(begin),
				})
			}
		}

		if toConsider.len() == 0 || (toConsider.len() == before && !produced) {
			log.Infof("No more changes or files to track, exiting the loop")
			res.State = Converged
		}
	}

	res.Remaining = toConsider.list()
	return res, nil
}

// partition splits the working set into what tr is given and the
// directories held back from it. Answers are kept in dirs for the rest of
// the run, so each path is checked once.
func (l *Loop) partition(ctx context.Context, tr Tracer, files *fileSet, dirs map[string]bool) (*fileSet, []string, error) {
	if tr.HandlesDirs() {
		return newFileSet(files.list()), nil, nil
	}
	toTrace := newFileSet()
	var skipped []string
	for _, f := range files.list() {
		isDir, ok := dirs[f]
		if !ok {
			var err error
			if isDir, err = l.Session.IsDir(ctx, f); err != nil {
				return nil, nil, fmt.Errorf("checking %s: %w", f, err)
			}
			dirs[f] = isDir
		}
		if isDir {
			skipped = append(skipped, f)
		} else {
			toTrace.add(f)
		}
	}
	return toTrace, skipped, nil
}

func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, session.ErrUnavailable)
}
