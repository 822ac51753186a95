package scheduler

import (
	"context"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
)

// Job names
const (
	JobPreorderSweep = "preorder_sweep"
	JobBatchExpiry   = "batch_expiry"
)

// Job is a unit of scheduled work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewJobFunc creates a named job from fn
func NewJobFunc(name string, fn func(ctx context.Context) error) JobFunc {
	return JobFunc{name: name, fn: fn}
}

// Name returns the job name
func (j JobFunc) Name() string { return j.name }

// Run runs the job
func (j JobFunc) Run(ctx context.Context) error { return j.fn(ctx) }

// NewPreorderSweepJob cancels expired pre-orders at the sweeper's clock time
func NewPreorderSweepJob(sweeper *apptrade.PreorderSweeper) Job {
	return NewJobFunc(JobPreorderSweep, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})
}

// NewBatchExpiryJob takes expired batches out of allocation
func NewBatchExpiryJob(svc *appinv.BatchExpiryService) Job {
	return NewJobFunc(JobBatchExpiry, func(ctx context.Context) error {
		_, err := svc.MarkExpiredBatches(ctx)
		return err
	})
}
