package graph

import (
	"context"

	"github.com/google/uuid"
)

// executeSubgraph dispatches a SubgraphNode: a
// plain wrap recurses once with the node's collected inputs; a map_config
// wrap broadcasts across the declared list parameters and collects each
// iteration's outputs back into per-output lists. Either way the nested
// run shares this run's dispatcher so its events carry the parent span as
// ParentSpanID instead of starting an unrelated trace.
func (rs *runSession) executeSubgraph(ctx context.Context, n *SubgraphNode) nodeOutcome {
	inputs, consumed, err := collectInputs(rs.graph, rs.state, n)
	if err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}

	if n.MapConfig() == nil {
		return rs.executeSubgraphOnce(ctx, n, inputs, consumed)
	}
	return rs.executeSubgraphMap(ctx, n, inputs, consumed)
}

func (rs *runSession) executeSubgraphOnce(ctx context.Context, n *SubgraphNode, inputs map[string]any, consumed map[string]uint64) nodeOutcome {
	spanID := uuid.NewString()
	result, runErr := rs.runner.run(ctx, n.Graph(), inputs, rs.nestedOptions(), &inheritance{
		dispatcher:      rs.dispatcher,
		parentCollector: rs.runLog,
		parentSpanID:    spanID,
	})
	if runErr != nil {
		return nodeOutcome{err: wrapNodeError(n.Name(), runErr, rs), consumedVersions: consumed}
	}
	switch result.Status {
	case StatusPaused:
		pause := &PauseSignal{Info: *result.Pause}
		return nodeOutcome{err: pause.rewrapNested(n.Name()), consumedVersions: consumed, nestedRunID: result.RunID}
	case StatusFailed:
		return nodeOutcome{err: wrapNodeError(n.Name(), result.Error, rs), consumedVersions: consumed, nestedRunID: result.RunID}
	default:
		return nodeOutcome{outputs: result.Values, consumedVersions: consumed, nestedRunID: result.RunID}
	}
}

func (rs *runSession) executeSubgraphMap(ctx context.Context, n *SubgraphNode, inputs map[string]any, consumed map[string]uint64) nodeOutcome {
	cfg := n.MapConfig()
	iterInputs, err := expandMapConfig(cfg, inputs)
	if err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}

	continueOnError := cfg.ErrorHandling == string(ErrorContinue)
	perIteration := make([]map[string]any, len(iterInputs))

	for i, iv := range iterInputs {
		spanID := uuid.NewString()
		result, runErr := rs.runner.run(ctx, n.Graph(), iv, rs.nestedOptions(), &inheritance{
			dispatcher:      rs.dispatcher,
			parentCollector: rs.runLog,
			parentSpanID:    spanID,
		})
		if runErr != nil {
			if continueOnError {
				perIteration[i] = nil
				continue
			}
			return nodeOutcome{err: wrapNodeError(n.Name(), runErr, rs), consumedVersions: consumed}
		}
		switch result.Status {
		case StatusPaused:
			pause := &PauseSignal{Info: *result.Pause}
			return nodeOutcome{err: pause.rewrapNested(n.Name()), consumedVersions: consumed, nestedRunID: result.RunID}
		case StatusFailed:
			if continueOnError {
				perIteration[i] = nil
				continue
			}
			return nodeOutcome{err: wrapNodeError(n.Name(), result.Error, rs), consumedVersions: consumed, nestedRunID: result.RunID}
		default:
			perIteration[i] = result.Values
		}
	}

	outputs := collectOutputLists(n.Outputs(), perIteration)
	return nodeOutcome{outputs: outputs, consumedVersions: consumed}
}

// nestedOptions carries the enclosing run's error-handling and iteration
// cap into a nested subgraph run, and propagates the workflow id.
func (rs *runSession) nestedOptions() RunOptions {
	return RunOptions{
		WorkflowID:    rs.workflowID,
		ErrorHandling: rs.errorHandling,
		MaxIterations: rs.maxIterations,
	}
}
