package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dshills/hypergraph-go/graph/emit"
	"github.com/dshills/hypergraph-go/graph/store"
	"github.com/google/uuid"
)

// ErrorHandling selects how a run reacts to a node-level failure.
type ErrorHandling string

const (
	// ErrorRaise propagates the first node failure out of Run/Map.
	ErrorRaise ErrorHandling = "raise"
	// ErrorContinue captures node failures into a Failed RunResult instead
	// of returning a Go error.
	ErrorContinue ErrorHandling = "continue"
)

// RunOptions configures a single Run or Map call. The zero value is
// a sensible default: no output selection (use the graph's own outputs),
// no entry point, no iteration cap, raise-on-error.
type RunOptions struct {
	Select          []string
	Entrypoint      string
	MaxIterations   int
	ErrorHandling   ErrorHandling
	EventProcessors []emit.Processor
	WorkflowID      string

	// MaxConcurrency overrides the runner's configured concurrency cap for
	// this call only; 0 means "use the runner's default." Setting this on
	// a sequential runner is an IncompatibleRunnerError.
	MaxConcurrency int
}

func (o RunOptions) errorHandling() ErrorHandling {
	if o.ErrorHandling == "" {
		return ErrorRaise
	}
	return o.ErrorHandling
}

// Runner is the façade over the scheduler: construct one with
// NewSequentialRunner or NewConcurrentRunner, share it across many Run/Map
// calls, and attach a Cache and Checkpointer once via RunnerOption rather
// than per call.
type Runner struct {
	concurrent     bool
	maxConcurrency int

	cache            Cache
	checkpointer     store.Checkpointer
	checkpointPolicy store.CheckpointPolicy
	metrics          *Metrics
	strictEvents     bool
	logger           *slog.Logger
}

// RunnerOption configures a Runner at construction via the functional-option
// pattern.
type RunnerOption func(*Runner)

// WithResultCache attaches a Cache function nodes may be served from.
// Without one, caching is a no-op regardless of a node's
// CacheEnabled flag.
func WithResultCache(c Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithCheckpointer attaches a durable step log. policy controls
// durability/retention; it is stored as given, and neither this option nor
// the runner calls CheckpointPolicy.Validate on it.
func WithCheckpointer(cp store.Checkpointer, policy store.CheckpointPolicy) RunnerOption {
	return func(r *Runner) {
		r.checkpointer = cp
		r.checkpointPolicy = policy
	}
}

// WithRunnerMetrics attaches Prometheus counters/histograms.
func WithRunnerMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithStrictEvents puts the run's dispatcher in strict mode: a failing
// event processor is still logged, and its error is also recorded on the
// dispatcher (Dispatcher.LastError). The run does not read that error and
// is not aborted by it.
func WithStrictEvents(strict bool) RunnerOption {
	return func(r *Runner) { r.strictEvents = strict }
}

// WithLogger overrides the slog.Logger used for the dispatcher's built-in
// error logging. The runner does not attach a log-based event processor
// of its own.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewSequentialRunner builds a Runner that executes one ready node at a
// time, in node-name order. Every scheduler rule must work here
// first; it is the reference behavior the concurrent runner must match.
func NewSequentialRunner(opts ...RunnerOption) *Runner {
	r := &Runner{checkpointPolicy: store.DefaultPolicy()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewConcurrentRunner builds a Runner that executes a superstep's ready
// nodes as independent tasks, capped at maxConcurrency leaf function
// executions in flight at once. maxConcurrency <= 0 sets no cap: a
// superstep's ready nodes still run as concurrent tasks, with no limit on
// leaf executions.
func NewConcurrentRunner(maxConcurrency int, opts ...RunnerOption) *Runner {
	r := &Runner{concurrent: true, maxConcurrency: maxConcurrency, checkpointPolicy: store.DefaultPolicy()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes graph once against values. values may supply
// any required/optional/seed input; anything missing a required entry
// fails fast with *MissingInputError before any node executes.
func (r *Runner) Run(ctx context.Context, g *Graph, values map[string]any, opts RunOptions) (*RunResult, error) {
	return r.run(ctx, g, values, opts, nil)
}

// inheritance carries the shared dispatcher and parent trace collector a
// nested subgraph run attaches to, so a nested run's events land on the
// same event stream as its parent (distinguished by RunID/ParentSpanID)
// instead of spawning an unrelated dispatcher per nesting level. nil for a top-level Run/Map call.
type inheritance struct {
	dispatcher      *emit.Dispatcher
	parentCollector *emit.RunLogCollector
	parentSpanID    string
}

// run is the shared entry point for top-level Run calls and recursive
// subgraph dispatch: inh is nil for a top-level call and set to
// the outer node's span/dispatcher for a nested one.
func (r *Runner) run(ctx context.Context, g *Graph, values map[string]any, opts RunOptions, inh *inheritance) (*RunResult, error) {
	if opts.MaxConcurrency > 0 && !r.concurrent {
		return nil, &IncompatibleRunnerError{Capability: "concurrent_execution"}
	}

	g, err := narrowGraph(g, opts)
	if err != nil {
		return nil, err
	}

	missing := missingRequired(g.InputSpec(), values)
	if len(missing) > 0 {
		return nil, &MissingInputError{Missing: missing, Provided: providedKeys(values)}
	}

	runID := uuid.NewString()
	var dispatcher *emit.Dispatcher
	parentSpanID := ""
	if inh != nil {
		dispatcher = inh.dispatcher
		parentSpanID = inh.parentSpanID
	} else {
		dispatcher = emit.NewDispatcher(r.strictEvents, r.logger, opts.EventProcessors...)
	}
	collector := emit.NewRunLogCollector(runID)
	dispatcher.Register(collector)
	if inh != nil && inh.parentCollector != nil {
		inh.parentCollector.Nest(parentSpanID, collector)
	}

	rs := &runSession{
		runner:        r,
		graph:         g,
		state:         newRunState(values),
		runID:         runID,
		workflowID:    opts.WorkflowID,
		parentSpanID:  parentSpanID,
		dispatcher:    dispatcher,
		runLog:        collector,
		errorHandling: opts.errorHandling(),
		maxIterations: opts.MaxIterations,
	}
	if r.concurrent {
		concurrencyCap := r.maxConcurrency
		if opts.MaxConcurrency > 0 {
			concurrencyCap = opts.MaxConcurrency
		}
		rs.initConcurrency(concurrencyCap)
	}

	if r.checkpointer != nil {
		if err := r.checkpointer.CreateRun(ctx, runID, g.Name()); err != nil {
			return nil, err
		}
	}

	result, err := rs.execute(ctx)
	if inh == nil {
		dispatcher.Shutdown()
	}

	if r.checkpointer != nil {
		status := store.StatusCompleted
		switch {
		case err != nil:
			status = store.StatusFailed
		case result != nil && result.Status == StatusFailed:
			status = store.StatusFailed
		case result != nil && result.Status == StatusPaused:
			status = store.StatusPaused
		}
		_ = r.checkpointer.UpdateRunStatus(ctx, runID, status)
	}
	if result != nil {
		result.Log = collector.Log()
	}
	return result, err
}

// narrowGraph applies RunOptions.Entrypoint and RunOptions.Select to g,
// returning a new (possibly unchanged) graph.
func narrowGraph(g *Graph, opts RunOptions) (*Graph, error) {
	if opts.Entrypoint != "" {
		ng, err := g.WithEntrypoint(opts.Entrypoint)
		if err != nil {
			return nil, err
		}
		g = ng
	}
	if len(opts.Select) > 0 {
		ng, err := g.Select(opts.Select...)
		if err != nil {
			return nil, err
		}
		g = ng
	}
	return g, nil
}

func missingRequired(spec InputSpec, values map[string]any) []string {
	var missing []string
	for _, p := range spec.Required {
		if _, ok := values[p]; !ok {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}

func providedKeys(values map[string]any) []string {
	out := make([]string, 0, len(values))
	for k := range values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Runner) recordCacheHit(nodeName string) {
	if r.metrics != nil {
		r.metrics.RecordCacheHit(nodeName)
	}
}

func (r *Runner) recordCacheMiss(nodeName string) {
	if r.metrics != nil {
		r.metrics.RecordCacheMiss(nodeName)
	}
}

func (r *Runner) recordSuperstep(graphName string) {
	if r.metrics != nil {
		r.metrics.RecordSuperstep(graphName)
	}
}

func (r *Runner) recordNodeLatency(nodeName string, d time.Duration, status string) {
	if r.metrics != nil {
		r.metrics.RecordNodeLatency(nodeName, float64(d)/float64(time.Millisecond), status)
	}
}

func (r *Runner) recordRoutingDecision(gateName, target string) {
	if r.metrics != nil {
		r.metrics.RecordRoutingDecision(gateName, target)
	}
}

func (r *Runner) setInflight(n int) {
	if r.metrics != nil {
		r.metrics.SetInflightNodes(n)
	}
}

func (r *Runner) logError(msg string, err error) {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, "error", err)
}

func (r *Runner) dispatchInterrupt(rs *runSession, nodeName, outputParam string, value any) {
	rs.emit(emit.Interrupt, nodeName, uuid.NewString(), map[string]any{
		"input_parameter": outputParam,
		"value":           value,
	})
}

// RunResult is the discriminated outcome of a run.
type RunResult struct {
	Status     RunStatus
	Values     map[string]any
	RunID      string
	WorkflowID string
	Error      error
	Pause      *PauseInfo
	Log        *emit.RunLog
}

// RunStatus discriminates RunResult's three shapes.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusPaused    RunStatus = "paused"
)

// Get is dict-like access into Values.
func (r *RunResult) Get(name string) (any, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// String is a compact repr that elides long sequences rather than
// dumping every element, so logging a RunResult never floods output with
// a megabyte list.
func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RunResult{status=%s, run_id=%s", r.Status, r.RunID)
	if r.WorkflowID != "" {
		fmt.Fprintf(&b, ", workflow_id=%s", r.WorkflowID)
	}
	b.WriteString(", values={")
	names := make([]string, 0, len(r.Values))
	for k := range r.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, k := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, elideRepr(r.Values[k]))
	}
	b.WriteString("}")
	if r.Error != nil {
		fmt.Fprintf(&b, ", error=%v", r.Error)
	}
	if r.Pause != nil {
		fmt.Fprintf(&b, ", pause={node=%s, param=%s}", r.Pause.NodeName, r.Pause.OutputParam)
	}
	b.WriteString("}")
	return b.String()
}

const elideLimit = 8

// elideRepr formats a value for RunResult.String, truncating slices
// longer than elideLimit and never recursing into cyclic structures
// (reflect.Value over a slice/map is printed shallowly via fmt, which
// already guards against runaway recursion on self-referential maps).
func elideRepr(v any) string {
	switch vv := v.(type) {
	case []any:
		if len(vv) > elideLimit {
			return fmt.Sprintf("[%v, ... +%d more]", vv[:elideLimit], len(vv)-elideLimit)
		}
	}
	return fmt.Sprintf("%v", v)
}
