package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner drives periodic sweeps. It wraps robfig/cron so main only deals
// with Start/Stop.
type Runner struct {
	cron      *cron.Cron
	scheduler *Scheduler
	logger    *slog.Logger
}

func NewRunner(scheduler *Scheduler, logger *slog.Logger) *Runner {
	return &Runner{
		cron:      cron.New(),
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start begins sweeping at the given interval.
func (r *Runner) Start(interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	_, err := r.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if _, err := r.scheduler.Sweep(ctx, time.Now()); err != nil {
			r.logger.ErrorContext(ctx, "scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
