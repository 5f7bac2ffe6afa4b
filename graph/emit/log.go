package emit

import "log/slog"

// LogProcessor is a slog-based Processor. Each event becomes one
// structured log line at a level
// chosen by variant: node-error logs at Error, everything else at Debug so
// a default logger configuration stays quiet during normal execution.
type LogProcessor struct {
	logger *slog.Logger
}

// NewLogProcessor wraps logger (slog.Default() if nil).
func NewLogProcessor(logger *slog.Logger) *LogProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProcessor{logger: logger}
}

func (l *LogProcessor) OnEvent(e Event) {
	args := []any{
		"variant", e.Variant,
		"run_id", e.RunID,
		"span_id", e.SpanID,
	}
	if e.NodeName != "" {
		args = append(args, "node", e.NodeName)
	}
	for k, v := range e.Fields {
		args = append(args, k, v)
	}
	if e.Variant == NodeError {
		l.logger.Error("graph event", args...)
		return
	}
	l.logger.Debug("graph event", args...)
}

func (l *LogProcessor) Shutdown() {}
