package graph

import (
	"log/slog"
	"time"
)

// steplog emits one structured log line per graph node invocation, the Go
// equivalent of the per-step reasoning trail: thread-id, node, iteration,
// latency, and outcome, for debugging and post-hoc review.
type steplog struct{}

func newStepLog() *steplog { return &steplog{} }

func (l *steplog) record(node string, iteration int, elapsed time.Duration, err error) {
	if err != nil {
		slog.Error("graph step failed",
			"node", node,
			"iteration", iteration,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return
	}
	slog.Info("graph step",
		"node", node,
		"iteration", iteration,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
