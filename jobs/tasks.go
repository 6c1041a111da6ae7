package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan re-verifies the quantity conservation
	// invariants across the whole ledger.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
)

// IntegrityScanPayload tunes a ledger integrity scan.
type IntegrityScanPayload struct {
	// ToleranceMT is the float comparison slack in metric tonnes.
	ToleranceMT float64 `json:"tolerance_mt"`
}

// NewLedgerIntegrityScanTask constructs an Asynq task.
func NewLedgerIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}
