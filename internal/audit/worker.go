package audit

import (
	"context"
	"log/slog"

	auditmetrics "verdant/internal/audit/metrics"
)

// Worker drains mirror copies of appended entries into an out-of-process
// sink. Delivery failures are logged and counted but never retried here; the
// in-process ledger remains the authority and the sink is reconciled from it.
type Worker struct {
	sink    Sink
	inbox   <-chan Entry
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
}

func NewWorker(sink Sink, inbox <-chan Entry, logger *slog.Logger, metrics *auditmetrics.Metrics) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger, metrics: metrics}
}

// Run consumes the inbox until the context is cancelled. Cancellation is the
// normal shutdown path and returns nil; callers running under an errgroup
// should not see a clean stop as a failure.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-w.inbox:
			if err := w.sink.Publish(ctx, entry); err != nil {
				if w.metrics != nil {
					w.metrics.IncrementMirrorFailures()
				}
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit mirror publish failed",
						"entry_id", entry.ID,
						"error", err,
					)
				}
			}
		}
	}
}
