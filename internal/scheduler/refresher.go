package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc one unit of periodic work. It must return ctx.Err() when abandoned
// and must not commit results after its context is cancelled.
type TickFunc func(ctx context.Context) error

// Stats tick outcome counters.
type Stats struct {
	Started    int64     `json:"started"`
	Completed  int64     `json:"completed"`
	Superseded int64     `json:"superseded"`
	Failed     int64     `json:"failed"`
	LastRun    time.Time `json:"last_run"`
	LastError  string    `json:"last_error,omitempty"`
}

// Refresher runs a TickFunc on an interval. Starting a tick cancels any tick still running.
type Refresher struct {
	interval time.Duration
	tick     TickFunc
	logger   *zap.Logger

	mu            sync.Mutex
	seq           uint64
	cancelRunning context.CancelFunc
	stats         Stats
	wg            sync.WaitGroup
}

func NewRefresher(interval time.Duration, tick TickFunc, logger *zap.Logger) *Refresher {
	return &Refresher{interval: interval, tick: tick, logger: logger}
}

// Start ticks immediately and then every interval until ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("Refresher started", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			r.stopRunning()
			r.wg.Wait()
			r.logger.Info("Refresher stopped")
			return
		case <-ticker.C:
			r.Trigger(ctx)
		}
	}
}

// Trigger starts a tick now, cancelling the one in flight. The channel yields the tick's error.
func (r *Refresher) Trigger(ctx context.Context) <-chan error {
	r.mu.Lock()
	if r.cancelRunning != nil {
		r.cancelRunning()
	}
	tickCtx, cancel := context.WithCancel(ctx)
	r.cancelRunning = cancel
	r.seq++
	seq := r.seq
	r.stats.Started++
	r.wg.Add(1)
	r.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		started := time.Now()
		err := r.tick(tickCtx)
		r.finish(seq, started, err)
		done <- err
	}()
	return done
}

func (r *Refresher) finish(seq uint64, started time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq == seq {
		r.cancelRunning = nil
	}
	r.stats.LastRun = started

	switch {
	case err == nil:
		r.stats.Completed++
		r.logger.Debug("Refresh tick completed", zap.Duration("took", time.Since(started)))
	case errors.Is(err, context.Canceled):
		r.stats.Superseded++
		r.logger.Debug("Refresh tick abandoned")
	default:
		r.stats.Failed++
		r.stats.LastError = err.Error()
		r.logger.Warn("Refresh tick failed, retrying next interval", zap.Error(err))
	}
}

func (r *Refresher) stopRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelRunning != nil {
		r.cancelRunning()
		r.cancelRunning = nil
	}
}

func (r *Refresher) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
