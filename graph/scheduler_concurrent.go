package graph

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// initConcurrency installs the leaf-execution semaphore a concurrent
// runner caps function/interrupt node executions with.
// cap <= 0 leaves leafSem nil, which executors.go treats as uncapped —
// the superstep's ready set still runs as one goroutine per node, just
// without a ceiling on how many may hold a leaf slot at once.
func (rs *runSession) initConcurrency(cap int) {
	if cap > 0 {
		rs.leafSem = semaphore.NewWeighted(int64(cap))
	}
}

// runBatchConcurrent runs every ready node in ready as an independent
// errgroup task: wall-clock for the superstep is the slowest
// node, not the sum, while the per-leaf semaphore (not this function)
// bounds how many function bodies actually execute at once. A task never
// returns its node error to the group — doing so would cancel the shared
// context and abort sibling nodes mid-superstep, which continue-mode
// explicitly disallows — so eg.Wait() only ever reports goroutine panics
// recovered by the errgroup machinery; per-node pause/error outcomes are
// read back out of the mutex-protected result map afterward. Results are
// collected into a name-keyed map so merge() applies them in the same
// deterministic (sorted) order the sequential runner would have used,
// regardless of which goroutine happened to finish first.
func (rs *runSession) runBatchConcurrent(ctx context.Context, superstep int, ready []string) (map[string]nodeOutcome, *PauseSignal, error) {
	eg, egCtx := errgroup.WithContext(ctx)

	var (
		mu     sync.Mutex
		result = make(map[string]nodeOutcome, len(ready))
		pause  *PauseSignal
		firstErr error
	)

	rs.runner.setInflight(len(ready))
	defer rs.runner.setInflight(0)

	for _, name := range ready {
		name := name
		n, _ := rs.graph.Node(name)
		eg.Go(func() error {
			out, p := rs.runOne(egCtx, superstep, name, n)
			mu.Lock()
			defer mu.Unlock()
			result[name] = out
			if p != nil && pause == nil {
				pause = p
			}
			if out.err != nil && firstErr == nil && pause == nil {
				firstErr = out.err
			}
			return nil
		})
	}
	_ = eg.Wait()

	if pause != nil {
		return result, pause, nil
	}
	if firstErr != nil && rs.errorHandling == ErrorRaise {
		return result, nil, firstErr
	}
	return result, nil, nil
}
