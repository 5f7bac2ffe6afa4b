package emit

import (
	"fmt"
	"log/slog"
	"sync"
)

// Dispatcher fans events out to zero or more Processors. A failing
// processor does not interrupt execution: its panic is recovered and
// logged. In strict mode the dispatcher also records the error, and
// LastError returns the most recent one.
type Dispatcher struct {
	mu         sync.Mutex
	processors []Processor
	strict     bool
	logger     *slog.Logger
	lastErr    error
}

// NewDispatcher builds a Dispatcher fanning out to processors. Only the
// processors passed here are registered; the runner attaches its trace
// collector (RunLog builder) afterwards with Register.
func NewDispatcher(strict bool, logger *slog.Logger, processors ...Processor) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{processors: processors, strict: strict, logger: logger}
}

// Register adds a processor after construction (used to attach the
// always-on trace collector without requiring every caller to pass it).
func (d *Dispatcher) Register(p Processor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processors = append(d.processors, p)
}

// Dispatch fans e out to every registered processor. A panicking
// processor is recovered and logged, and the remaining processors still
// see the event; in strict mode the error is also recorded for LastError.
func (d *Dispatcher) Dispatch(e Event) {
	d.mu.Lock()
	processors := append([]Processor{}, d.processors...)
	d.mu.Unlock()

	for _, p := range processors {
		d.safeOnEvent(p, e)
	}
}

func (d *Dispatcher) safeOnEvent(p Processor, e Event) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("event processor panic: %v", r)
			d.handleErr(err, e)
		}
	}()
	p.OnEvent(e)
}

func (d *Dispatcher) handleErr(err error, e Event) {
	d.logger.Error("event processor failed", "error", err, "variant", e.Variant, "run_id", e.RunID)
	if d.strict {
		d.mu.Lock()
		d.lastErr = err
		d.mu.Unlock()
	}
}

// LastError returns the most recent processor error recorded while running
// in strict mode, or nil.
func (d *Dispatcher) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Shutdown releases every processor's resources.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	processors := append([]Processor{}, d.processors...)
	d.mu.Unlock()
	for _, p := range processors {
		p.Shutdown()
	}
}
