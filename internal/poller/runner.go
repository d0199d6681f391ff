package poller

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives one coordinator on a fixed interval. Cycles run to
// completion in the runner goroutine: an overrunning cycle delays the next
// tick, it is never skipped or run in parallel.
type Runner struct {
	coordinator *Coordinator
	interval    time.Duration
	refreshChan chan struct{}
	stopChan    chan struct{}
	doneChan    chan struct{}
	logger      *slog.Logger
}

// NewRunner creates a runner for the given coordinator.
func NewRunner(coordinator *Coordinator, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		coordinator: coordinator,
		interval:    interval,
		refreshChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		logger: logger.With(
			"component", "poller",
			"device_id", coordinator.DeviceID(),
			"kind", string(coordinator.Kind()),
		),
	}
}

// Start begins the polling loop. It returns immediately; the loop runs in
// its own goroutine until Stop is called.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop stops the polling loop and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	close(r.stopChan)
	<-r.doneChan
}

// RequestRefresh schedules an immediate cycle. Non-blocking; a refresh
// request while one is already pending is coalesced.
func (r *Runner) RequestRefresh() {
	select {
	case r.refreshChan <- struct{}{}:
	default:
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneChan)

	r.logger.Info("Poller started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runCycle(ctx)
		case <-r.refreshChan:
			r.runCycle(ctx)
		case <-r.stopChan:
			r.logger.Info("Poller stopped")
			return
		case <-ctx.Done():
			r.logger.Info("Poller context cancelled")
			return
		}
	}
}

func (r *Runner) runCycle(ctx context.Context) {
	if err := r.coordinator.RunCycle(ctx); err != nil {
		r.logger.Warn("Poll cycle failed", "error", err)
	}
}
