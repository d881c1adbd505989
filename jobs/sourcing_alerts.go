package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tradeflow-erp/tradeflow/internal/procurement"
)

// NewSourcingAlertsHandler scans active sourcing projects and enqueues a
// notification for every surplus position.
func NewSourcingAlertsHandler(logger *slog.Logger, svc *procurement.Service, client *Client) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		projects, _, err := svc.ListProjects(ctx, procurement.ProjectFilter{
			Status: procurement.ProjectSourcing,
			Limit:  500,
		})
		if err != nil {
			logger.Error("sourcing alerts scan", slog.Any("error", err))
			return err
		}

		alerts := 0
		for _, p := range projects {
			balance, err := svc.ProjectBalance(ctx, p.ID)
			if err != nil {
				logger.Error("project balance", slog.Any("error", err), slog.Int64("project_id", p.ID))
				continue
			}
			if balance.Balance >= 0 || balance.FullySourced {
				continue
			}
			alerts++
			payload := NotifyPayload{
				Recipient: "procurement",
				Subject:   fmt.Sprintf("Surplus on project %q", p.Name),
				Message:   fmt.Sprintf("Procured %.2f against demand %.2f (surplus %.2f).", balance.TotalProcured, balance.TotalDemand, -balance.Balance),
			}
			if client != nil {
				if _, err := client.EnqueueNotify(ctx, payload); err != nil {
					logger.Error("enqueue surplus alert", slog.Any("error", err), slog.Int64("project_id", p.ID))
				}
			}
		}
		logger.Info("sourcing alerts scan complete", slog.Int("projects", len(projects)), slog.Int("alerts", alerts))
		return nil
	}
}
