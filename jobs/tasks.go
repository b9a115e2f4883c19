package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLedgerIntegrity verifies every posted entry still balances.
	TaskTypeLedgerIntegrity = "ledger:integrity_scan"
	// TaskTypeValuationWarmup pre-computes average costs into the cache.
	TaskTypeValuationWarmup = "stock:valuation_warmup"
)

// LedgerIntegrityPayload carries scheduling metadata for the integrity scan.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the ledger scan.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// ValuationWarmupPayload carries scheduling metadata for the cache warmup.
type ValuationWarmupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewValuationWarmupTask constructs an Asynq task for the valuation warmup.
func NewValuationWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationWarmupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeValuationWarmup, body, asynq.Queue(QueueDefault)), nil
}

func decodePayload[T any](t *asynq.Task) (T, error) {
	var payload T
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}
