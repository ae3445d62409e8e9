// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pool_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/pool"
)

// fakeConn is a pool connection whose validity tests can flip.
type fakeConn struct {
	valid  atomic.Bool
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	conn := &fakeConn{}
	conn.valid.Store(true)
	return conn
}

func (conn *fakeConn) Valid() bool { return conn.valid.Load() }

func (conn *fakeConn) Close() error {
	conn.closed.Store(true)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
TestPool_AcquireRelease verifies the basic lease cycle.
*/
func TestPool_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	p, err := pool.New(ctx, 2, func(context.Context) (*fakeConn, error) {
		return newFakeConn(), nil
	}, discardLogger())
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease.Conn())
	assert.Equal(t, 1, p.IdleCount())

	lease.Close()
	assert.Equal(t, 2, p.IdleCount())

	// Closing twice must be a no-op.
	lease.Close()
	assert.Equal(t, 2, p.IdleCount())
}

/*
TestPool_BoundedLeases verifies that outstanding leases never exceed the
configured size and that waiters unblock when a lease is returned.
*/
func TestPool_BoundedLeases(t *testing.T) {
	ctx := context.Background()
	const size = 3

	p, err := pool.New(ctx, size, func(context.Context) (*fakeConn, error) {
		return newFakeConn(), nil
	}, discardLogger())
	require.NoError(t, err)
	defer p.Close()

	leases := make([]*pool.Lease[*fakeConn], 0, size)
	for i := 0; i < size; i++ {
		lease, err := p.Acquire(ctx)
		require.NoError(t, err)
		leases = append(leases, lease)
	}
	assert.Equal(t, 0, p.IdleCount())

	// The pool is exhausted: a fourth acquire blocks until a release.
	unblocked := make(chan struct{})
	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		lease, err := p.Acquire(ctx)
		require.NoError(t, err)
		close(unblocked)
		lease.Close()
	}()

	select {
	case <-unblocked:
		t.Fatal("acquire must not succeed while all leases are outstanding")
	case <-time.After(100 * time.Millisecond):
	}

	leases[0].Close()

	select {
	case <-unblocked:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not handed the released connection")
	}

	for _, lease := range leases[1:] {
		lease.Close()
	}
	waitGroup.Wait()
}

/*
TestPool_AcquireCancelled verifies ctx cancellation surfaces as
ServiceUnavailable rather than hanging for the full bound.
*/
func TestPool_AcquireCancelled(t *testing.T) {
	ctx := context.Background()
	p, err := pool.New(ctx, 1, func(context.Context) (*fakeConn, error) {
		return newFakeConn(), nil
	}, discardLogger())
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Close()

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(cancelCtx)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))
}

/*
TestPool_RevivesStaleConnection verifies a connection that went stale while
idle is rebuilt before hand-out, never given to a caller.
*/
func TestPool_RevivesStaleConnection(t *testing.T) {
	ctx := context.Background()

	var built atomic.Int64
	p, err := pool.New(ctx, 1, func(context.Context) (*fakeConn, error) {
		built.Add(1)
		return newFakeConn(), nil
	}, discardLogger())
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	stale := lease.Conn()
	stale.valid.Store(false)
	lease.Close() // release triggers an inline rebuild

	lease, err = p.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Close()

	assert.True(t, lease.Conn().Valid())
	assert.True(t, stale.closed.Load(), "stale connection must be closed")
	assert.GreaterOrEqual(t, built.Load(), int64(2))
}

/*
TestPool_RefillRestoresCapacity verifies the background refiller converges
the pool back to full size after rebuild failures.
*/
func TestPool_RefillRestoresCapacity(t *testing.T) {
	ctx := context.Background()

	var failRebuild atomic.Bool
	p, err := pool.New(ctx, 1, func(context.Context) (*fakeConn, error) {
		if failRebuild.Load() {
			return nil, errors.New("gateway down")
		}
		return newFakeConn(), nil
	}, discardLogger())
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	lease.Conn().valid.Store(false)

	// Rebuild on release fails: the slot goes to the refiller.
	failRebuild.Store(true)
	lease.Close()
	assert.Equal(t, 0, p.IdleCount())

	// Collaborator recovers; the refiller restores the slot.
	failRebuild.Store(false)
	require.Eventually(t, func() bool {
		return p.IdleCount() == 1
	}, 5*time.Second, 50*time.Millisecond, "capacity must converge back to pool size")
}
