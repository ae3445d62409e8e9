// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sweeper runs the background reaper for expired session rows.

Refresh-token rows are deleted eagerly on rotation and logout, but tokens
that simply age out would otherwise accumulate forever. The sweeper deletes
them on a fixed interval so the session table stays bounded.

# Lifecycle

Start and Stop are idempotent. The worker decomposes the sweep interval
into one-second stop checks, so a shutdown never waits longer than about a
second for the loop to notice.
*/
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionSweeper is the storage seam. Implemented by the auth session
// repository.
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically deletes expired session rows.
type Sweeper struct {
	sessions SessionSweeper
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a stopped [Sweeper]. A non-positive interval falls back to
// one minute.
func New(sessions SessionSweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

/*
Start launches the background worker.

Description: Idempotent; a second Start while running is a no-op.

Returns:
  - bool: Whether this call actually started the worker
*/
func (sweeper *Sweeper) Start() bool {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	if sweeper.running {
		return false
	}
	sweeper.running = true
	sweeper.stop = make(chan struct{})
	sweeper.done = make(chan struct{})

	go sweeper.run(sweeper.stop, sweeper.done)

	sweeper.logger.Info("sweeper_started",
		slog.Duration("interval", sweeper.interval),
	)
	return true
}

/*
Stop signals the worker and waits for it to exit.

Description: Idempotent; stopping a stopped sweeper is a no-op. Returns
once the worker goroutine has finished its current pass.
*/
func (sweeper *Sweeper) Stop() {
	sweeper.mu.Lock()
	if !sweeper.running {
		sweeper.mu.Unlock()
		return
	}
	sweeper.running = false
	stop, done := sweeper.stop, sweeper.done
	sweeper.mu.Unlock()

	close(stop)
	<-done

	sweeper.logger.Info("sweeper_stopped")
}

// run is the worker loop. It sweeps once per interval, sleeping in
// one-second slices so a stop signal is honoured quickly.
func (sweeper *Sweeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		sweeper.sweepOnce()

		remaining := sweeper.interval
		for remaining > 0 {
			slice := time.Second
			if remaining < slice {
				slice = remaining
			}
			select {
			case <-stop:
				return
			case <-time.After(slice):
				remaining -= slice
			}
		}
	}
}

// sweepOnce performs one delete pass. Failures are logged and the loop
// carries on; a transient storage error must not kill the worker.
func (sweeper *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := sweeper.sessions.SweepExpired(ctx)
	if err != nil {
		sweeper.logger.Error("sweeper_pass_failed",
			slog.Any("error", err),
		)
		return
	}

	if removed > 0 {
		sweeper.logger.Info("sweeper_sessions_removed",
			slog.Int64("removed", removed),
		)
	}
}
