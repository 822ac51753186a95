package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue the sweep tasks run on
	QueueDefault = "default"

	// TaskPreorderSweep cancels expired pre-orders
	TaskPreorderSweep = "fulfillment:preorder_sweep"
	// TaskBatchExpiry takes expired batches out of allocation
	TaskBatchExpiry = "fulfillment:batch_expiry"
)

// SweepPayload carries an optional reference time. A zero At means the
// handler's clock time, which is what cron-registered tasks use.
type SweepPayload struct {
	At time.Time `json:"at,omitzero"`
}

func newSweepTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{At: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// NewPreorderSweepTask constructs a pre-order sweep task
func NewPreorderSweepTask(at time.Time) (*asynq.Task, error) {
	return newSweepTask(TaskPreorderSweep, at)
}

// NewBatchExpiryTask constructs a batch expiry task
func NewBatchExpiryTask() (*asynq.Task, error) {
	return newSweepTask(TaskBatchExpiry, time.Time{})
}
