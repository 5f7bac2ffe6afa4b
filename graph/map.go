package graph

import (
	"context"
	"sync"

	"github.com/dshills/hypergraph-go/graph/emit"
	"golang.org/x/sync/errgroup"
)

// MapOptions configures a Map call. MapOver names the parameter(s)
// to broadcast; MapMode selects zip or product combination, exactly like
// a subgraph node's MapConfig — Map is the same broadcast
// mechanism applied at the top level instead of to one subgraph node's
// inputs.
type MapOptions struct {
	Select          []string
	Entrypoint      string
	ErrorHandling   ErrorHandling
	EventProcessors []emit.Processor
	MaxConcurrency  int

	MapOver []string
	MapMode string
}

func (o MapOptions) errorHandling() ErrorHandling {
	if o.ErrorHandling == "" {
		return ErrorRaise
	}
	return o.ErrorHandling
}

// Map runs graph once per input variation generated by broadcasting
// opts.MapOver across values. Map-item runs never inherit a
// workflow id — each gets its own independent run id. Results are returned in input
// order regardless of completion order.
func (r *Runner) Map(ctx context.Context, g *Graph, values map[string]any, opts MapOptions) ([]*RunResult, error) {
	cfg := &MapConfig{Params: opts.MapOver, Mode: opts.MapMode, ErrorHandling: string(opts.errorHandling())}
	variations, err := expandMapConfig(cfg, values)
	if err != nil {
		return nil, err
	}

	runOpts := RunOptions{
		Select:          opts.Select,
		Entrypoint:      opts.Entrypoint,
		ErrorHandling:   opts.errorHandling(),
		EventProcessors: opts.EventProcessors,
		MaxConcurrency:  opts.MaxConcurrency,
	}

	if !r.concurrent || len(variations) <= 1 {
		return r.mapSequential(ctx, g, variations, runOpts)
	}
	return r.mapConcurrent(ctx, g, variations, runOpts, opts.MaxConcurrency)
}

func (r *Runner) mapSequential(ctx context.Context, g *Graph, variations []map[string]any, opts RunOptions) ([]*RunResult, error) {
	results := make([]*RunResult, len(variations))
	for i, v := range variations {
		res, err := r.Run(ctx, g, v, opts)
		if err != nil {
			if opts.errorHandling() == ErrorRaise {
				return nil, err
			}
			res = &RunResult{Status: StatusFailed, Error: err}
		}
		results[i] = res
	}
	return results, nil
}

// mapConcurrent drains variations through an errgroup bounded to
// min(cap, #variations) in-flight runs at once,
// re-sorting results back to input order since goroutines complete in
// arbitrary order. As in runBatchConcurrent, a task never returns its
// run error to the group — that would cancel sibling runs via the
// shared context, which continue mode disallows — so errors are
// tracked in firstErr and only surfaced after every variation finishes.
func (r *Runner) mapConcurrent(ctx context.Context, g *Graph, variations []map[string]any, opts RunOptions, maxConcurrency int) ([]*RunResult, error) {
	workers := r.maxConcurrency
	if maxConcurrency > 0 {
		workers = maxConcurrency
	}
	if workers <= 0 || workers > len(variations) {
		workers = len(variations)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	results := make([]*RunResult, len(variations))
	var mu sync.Mutex
	var firstErr error

	for i, v := range variations {
		i, v := i, v
		eg.Go(func() error {
			res, err := r.Run(egCtx, g, v, opts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				if opts.errorHandling() == ErrorRaise {
					return nil
				}
				res = &RunResult{Status: StatusFailed, Error: err}
			}
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	if firstErr != nil && opts.errorHandling() == ErrorRaise {
		return nil, firstErr
	}
	return results, nil
}
