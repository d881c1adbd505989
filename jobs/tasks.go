package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotify dispatches a user-facing notification.
	TaskTypeNotify = "notify:dispatch"
	// TaskTypeLedgerIntegrity scans for payment drift between documents and
	// the ledger.
	TaskTypeLedgerIntegrity = "ledger:integrity"
	// TaskTypeSourcingAlerts scans sourcing projects for surplus positions.
	TaskTypeSourcingAlerts = "sourcing:alerts"
)

// NotifyPayload describes a notification to deliver.
type NotifyPayload struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// NewNotifyTask constructs a notification task.
func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotify, data), nil
}

// NewLedgerIntegrityTask constructs the nightly integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLedgerIntegrity, nil)
}

// NewSourcingAlertsTask constructs the sourcing surplus scan task.
func NewSourcingAlertsTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSourcingAlerts, nil)
}

// NewNotifyHandler processes TaskTypeNotify tasks. Delivery is a structured
// log line; mail transport is a separate concern.
func NewNotifyHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("notify",
			slog.String("recipient", payload.Recipient),
			slog.String("subject", payload.Subject),
			slog.String("message", payload.Message))
		return nil
	}
}
