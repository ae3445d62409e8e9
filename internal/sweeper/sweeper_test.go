// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sweeper_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/sweeper"
)

type countingSweeper struct {
	passes atomic.Int64
	err    error
}

func (c *countingSweeper) SweepExpired(_ context.Context) (int64, error) {
	c.passes.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 3, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
TestSweeper_StartStop checks the basic lifecycle: Start runs at least one
pass immediately, double Start is a no-op, and Stop is repeat-safe.
*/
func TestSweeper_StartStop(t *testing.T) {
	store := &countingSweeper{}
	s := sweeper.New(store, time.Hour, discardLogger())

	require.True(t, s.Start())
	require.False(t, s.Start())

	// The first pass runs before the first sleep.
	assert.Eventually(t, func() bool {
		return store.passes.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()

	// No further passes after Stop returned.
	settled := store.passes.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, store.passes.Load())
}

/*
TestSweeper_StopLatency checks that Stop returns quickly even with a long
interval, since the worker sleeps in one-second slices.
*/
func TestSweeper_StopLatency(t *testing.T) {
	store := &countingSweeper{}
	s := sweeper.New(store, time.Hour, discardLogger())

	require.True(t, s.Start())
	assert.Eventually(t, func() bool {
		return store.passes.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	started := time.Now()
	s.Stop()
	assert.Less(t, time.Since(started), 2*time.Second)
}

/*
TestSweeper_SurvivesErrors checks that a failing pass does not kill the
worker; the next interval still sweeps.
*/
func TestSweeper_SurvivesErrors(t *testing.T) {
	store := &countingSweeper{err: errors.New("storage down")}
	s := sweeper.New(store, 10*time.Millisecond, discardLogger())

	require.True(t, s.Start())
	assert.Eventually(t, func() bool {
		return store.passes.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
}

/*
TestSweeper_Restart checks that a stopped sweeper can be started again.
*/
func TestSweeper_Restart(t *testing.T) {
	store := &countingSweeper{}
	s := sweeper.New(store, time.Hour, discardLogger())

	require.True(t, s.Start())
	s.Stop()

	before := store.passes.Load()
	require.True(t, s.Start())
	assert.Eventually(t, func() bool {
		return store.passes.Load() > before
	}, time.Second, 10*time.Millisecond)
	s.Stop()
}
