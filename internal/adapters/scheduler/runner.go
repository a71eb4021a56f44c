// Package scheduler runs the periodic sweep loop around the scheduler
// service.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper is the sweep operation the runner drives.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// Runner ticks the sweeper at a fixed interval until stopped.
type Runner struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Sweeper  Sweeper
	Interval time.Duration
	Logger   *slog.Logger
}

// NewRunner creates a Runner. Interval must be positive.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{sweeper: opts.Sweeper, interval: interval, logger: opts.Logger}
}

// Start launches the sweep loop. An immediate sweep runs before the first
// tick so due schedules are not delayed by one interval on boot.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx)
	if r.logger != nil {
		r.logger.Info("scheduler runner started", "interval", r.interval.String())
	}
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
	if r.logger != nil {
		r.logger.Info("scheduler runner stopped")
	}
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	fired := r.sweeper.Sweep(ctx)
	if fired > 0 && r.logger != nil {
		r.logger.Debug("sweep complete", "fired", fired)
	}
}
