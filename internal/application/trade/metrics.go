package trade

import "time"

// Checkout outcomes reported to Metrics
const (
	OutcomeSuccess           = "success"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

// Metrics receives fulfillment measurements
type Metrics interface {
	// CheckoutCompleted records one createOrder or fulfillPreorder call
	CheckoutCompleted(kind, outcome string, elapsed time.Duration)
	// CommitRetried records a commit attempt lost to a concurrent writer
	CommitRetried(kind string)
	// PreordersSwept records one sweeper run
	PreordersSwept(cancelled, skipped, failed int)
}

type noopMetrics struct{}

func (noopMetrics) CheckoutCompleted(string, string, time.Duration) {}
func (noopMetrics) CommitRetried(string)                            {}
func (noopMetrics) PreordersSwept(int, int, int)                    {}
