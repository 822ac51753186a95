package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// DailyHour and DailyMinute are the wall-clock time of the daily run (24h format)
	DailyHour   int
	DailyMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailyHour:     2, // 2am
		DailyMinute:   0,
		CheckInterval: time.Minute,
	}
}

// Validate checks the configuration
func (c CronTriggerConfig) Validate() error {
	if c.DailyHour < 0 || c.DailyHour > 23 {
		return fmt.Errorf("%w: daily hour %d out of range", ErrInvalidConfig, c.DailyHour)
	}
	if c.DailyMinute < 0 || c.DailyMinute > 59 {
		return fmt.Errorf("%w: daily minute %d out of range", ErrInvalidConfig, c.DailyMinute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// CronTrigger runs its jobs once a day inside the server process.
// Deployments with several server replicas use the asynq worker instead.
type CronTrigger struct {
	config CronTriggerConfig
	jobs   []Job
	clock  shared.Clock
	logger *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	runMu       sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, clock shared.Clock, logger *zap.Logger, jobs ...Job) *CronTrigger {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &CronTrigger{
		config: config,
		jobs:   jobs,
		clock:  clock,
		logger: logger,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	if len(c.jobs) == 0 {
		return ErrNoJobs
	}

	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("daily_hour", c.config.DailyHour),
		zap.Int("daily_minute", c.config.DailyMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
		zap.Int("jobs", len(c.jobs)),
	)

	return nil
}

// Stop stops the cron trigger and waits for a running job to return
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the trigger loop is active
func (c *CronTrigger) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

// runLoop checks periodically if it's time to run the jobs
func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the jobs when the clock has reached today's run time.
// A run missed because the process was down is caught up on the next check.
func (c *CronTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.clock.Now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), c.config.DailyHour, c.config.DailyMinute, 0, 0, now.Location())
	if now.Before(due) {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering daily sweep jobs", zap.String("date", currentDate))
	c.RunAll(ctx)
	return true
}

// RunAll runs every job in registration order. Failures are logged and do
// not stop later jobs.
func (c *CronTrigger) RunAll(ctx context.Context) map[string]error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	results := make(map[string]error, len(c.jobs))
	for _, job := range c.jobs {
		if ctx.Err() != nil {
			break
		}
		results[job.Name()] = c.runJob(ctx, job)
	}
	return results
}

// RunJob runs a single job by name
func (c *CronTrigger) RunJob(ctx context.Context, name string) error {
	for _, job := range c.jobs {
		if job.Name() == name {
			c.runMu.Lock()
			defer c.runMu.Unlock()
			return c.runJob(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, name)
}

func (c *CronTrigger) runJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", job.Name())
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
		telemetry.EndSpan(span, err)
		if err != nil {
			c.logger.Error("Scheduled job failed",
				zap.String("job", job.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		c.logger.Info("Scheduled job completed",
			zap.String("job", job.Name()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()
	return job.Run(ctx)
}
