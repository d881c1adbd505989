package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tradeflow-erp/tradeflow/internal/finance"
)

// driftTolerance absorbs rounding noise before a document counts as drifted.
const driftTolerance = 0.009

// NewLedgerIntegrityHandler recomputes payments per document against the
// ledger and reports drift. Nothing is repaired automatically; the log is
// the output.
func NewLedgerIntegrityHandler(logger *slog.Logger, svc *finance.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		drift, err := svc.PaymentDrift(ctx, driftTolerance)
		if err != nil {
			logger.Error("ledger integrity scan", slog.Any("error", err))
			return err
		}
		if len(drift) == 0 {
			logger.Info("ledger integrity scan clean")
			return nil
		}
		for _, d := range drift {
			logger.Warn("ledger drift",
				slog.Int64("document_id", d.DocumentID),
				slog.String("kind", d.Kind),
				slog.Float64("expected", d.Expected),
				slog.Float64("actual", d.Actual))
		}
		logger.Warn("ledger integrity scan found drift", slog.Int("documents", len(drift)))
		return nil
	}
}
