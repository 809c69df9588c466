package tracer

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxCmdLen is the command line budget used when the real limit of
// the remote system is unknown.
const DefaultMaxCmdLen = 2048

// ErrInvalidBatch is returned when there is nothing to batch.
var ErrInvalidBatch = errors.New("no arguments to batch")

// BatchOptions tunes Batch.
type BatchOptions struct {
	// MaxCmdLen overrides DefaultMaxCmdLen.
	MaxCmdLen int
	// Accept decides whether a failed batch is recorded in its result
	// instead of aborting, e.g. "no path found" from dpkg-query.
	Accept func(*session.CommandError) bool
	// Workers > 1 runs batches concurrently; results keep batch order.
	Workers int
	Exec    session.ExecOptions
}

// BatchResult is the output of one invocation.
type BatchResult struct {
	Args   []string
	Stdout string
	Stderr string
	Err    *session.CommandError
}

// BatchSize returns how many args fit in one command line after prefix.
func BatchSize(prefix, args []string, maxCmdLen int) int {
	if maxCmdLen <= 0 {
		maxCmdLen = DefaultMaxCmdLen
	}
	prefixLen := 0
	for _, p := range prefix {
		prefixLen += len(p) + 1
	}
	longest := 0
	for _, a := range args {
		longest = max(longest, len(a))
	}
	return max(1, (maxCmdLen-prefixLen)/(longest+1))
}

// SplitBatches chunks args, in order, to fit after prefix.
func SplitBatches(prefix, args []string, maxCmdLen int) [][]string {
	size := BatchSize(prefix, args, maxCmdLen)
	var batches [][]string
	for start := 0; start < len(args); start += size {
		end := min(start+size, len(args))
		batches = append(batches, args[start:end])
	}
	return batches
}

// Batch runs prefix+batch for every batch of args and returns the results
// in batch order. A command failure accepted by opts.Accept is stored in the
// batch's Err; any other failure aborts.
func Batch(ctx context.Context, sess session.Session, prefix, args []string, opts BatchOptions) ([]BatchResult, error) {
	if len(args) == 0 {
		return nil, ErrInvalidBatch
	}
	batches := SplitBatches(prefix, args, opts.MaxCmdLen)
	results := make([]BatchResult, len(batches))

	run := func(ctx context.Context, i int) error {
		argv := append(append([]string{}, prefix...), batches[i]...)
		stdout, stderr, err := sess.ExecuteCommand(ctx, argv, opts.Exec)
		results[i] = BatchResult{Args: batches[i], Stdout: stdout, Stderr: stderr}
		if err == nil {
			return nil
		}
		cmdErr, ok := session.IsCommandError(err)
		if ok && opts.Accept != nil && ctx.Err() == nil && opts.Accept(cmdErr) {
			results[i].Err = cmdErr
			return nil
		}
		return fmt.Errorf("batch %d/%d of %v: %w", i+1, len(batches), prefix, err)
	}

	if opts.Workers <= 1 || len(batches) == 1 {
		for i := range batches {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
		return results, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range batches {
		g.Go(func() error { return run(gCtx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
