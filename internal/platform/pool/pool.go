// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pool provides a bounded, blocking-acquire connection pool over a
caller-supplied factory.

It guards collaborators that do not ship their own pooling (the SMS gateway
client being the primary consumer). PostgreSQL and Redis access go through
pgxpool and go-redis respectively, which pool internally.

Guarantees:

  - At most Size leases are outstanding at any instant.
  - Acquire never hands out a connection whose Valid() reports false; stale
    idle connections are rebuilt through the factory first.
  - A failed rebuild does not shrink capacity permanently: the slot is handed
    to a background refiller that retries with linear backoff.
*/
package pool

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
)

// # Contracts

// Conn is the minimal contract a pooled connection must satisfy.
type Conn interface {
	// Valid reports whether the connection is still usable.
	Valid() bool

	// Close releases the underlying resource.
	Close() error
}

// Factory builds a fresh connection. It is invoked at pool construction,
// on revalidation failure during Acquire, and by the background refiller.
type Factory[T Conn] func(ctx context.Context) (T, error)

// # Pool

// Opinionated pool timings.
const (
	// acquireTimeout caps how long Acquire blocks for an idle slot,
	// regardless of the caller's own deadline, to protect the pool under
	// bursty load.
	acquireTimeout = 5 * time.Second

	// refillBaseDelay is the first wait of the background refiller's linear
	// backoff.
	refillBaseDelay = 1 * time.Second

	// refillMaxDelay bounds the refiller's backoff growth.
	refillMaxDelay = 30 * time.Second
)

// Pool is a bounded FIFO pool of connections of type T.
type Pool[T Conn] struct {
	factory Factory[T]
	size    int
	logger  *slog.Logger

	// idle is the FIFO hand-off queue. Its capacity equals size, so the
	// number of outstanding leases can never exceed size.
	idle chan T

	// refill receives one signal per slot lost to a failed rebuild.
	refill chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

/*
New constructs a pool and eagerly builds the initial connections.

Description: Slots whose initial build fails are not fatal — they are handed
to the background refiller, so the pool starts degraded but converges to
full capacity once the collaborator recovers.

Parameters:
  - ctx: context.Context (bounds the initial builds)
  - size: int (maximum outstanding leases; must be positive)
  - factory: Factory[T]
  - logger: *slog.Logger

Returns:
  - *Pool[T]: Ready pool
  - error: Invalid size
*/
func New[T Conn](ctx context.Context, size int, factory Factory[T], logger *slog.Logger) (*Pool[T], error) {
	if size <= 0 {
		return nil, apperr.InvalidArgument("Pool size must be positive")
	}

	p := &Pool[T]{
		factory: factory,
		size:    size,
		logger:  logger,
		idle:    make(chan T, size),
		refill:  make(chan struct{}, size),
		closed:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		conn, err := factory(ctx)
		if err != nil {
			logger.Warn("pool_initial_build_failed",
				slog.Int("slot", i),
				slog.Any("error", err),
			)
			p.refill <- struct{}{}
			continue
		}
		p.idle <- conn
	}

	go p.refillLoop()

	return p, nil
}

// Size returns the configured capacity.
func (p *Pool[T]) Size() int { return p.size }

// IdleCount returns the number of connections currently parked in the pool.
func (p *Pool[T]) IdleCount() int { return len(p.idle) }

/*
Acquire blocks until an idle connection is available, the acquire bound
elapses, or ctx is cancelled.

Description: A stale connection pulled from the queue is closed and rebuilt
through the factory before hand-out. If the rebuild fails, the slot goes to
the background refiller and the caller receives ServiceUnavailable.

Parameters:
  - ctx: context.Context

Returns:
  - *Lease[T]: Non-shareable holder that must be closed on every exit path
  - error: apperr.ServiceUnavailable on timeout or failed revival
*/
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	select {
	case conn := <-p.idle:
		if isNilConn(conn) || !conn.Valid() {
			if !isNilConn(conn) {
				_ = conn.Close()
			}
			rebuilt, err := p.factory(ctx)
			if err != nil {
				p.logger.Warn("pool_revive_failed", slog.Any("error", err))
				p.refill <- struct{}{}
				return nil, apperr.ServiceUnavailable("Connection pool could not revive a connection").WithCause(err)
			}
			conn = rebuilt
		}
		return &Lease[T]{pool: p, conn: conn}, nil

	case <-timer.C:
		return nil, apperr.ServiceUnavailable("Connection pool exhausted")

	case <-ctx.Done():
		return nil, apperr.ServiceUnavailable("Connection pool acquire cancelled").WithCause(ctx.Err())

	case <-p.closed:
		return nil, apperr.ServiceUnavailable("Connection pool is closed")
	}
}

// release returns a connection to the idle queue, rebuilding it first if it
// went stale while leased.
func (p *Pool[T]) release(conn T) {
	if isNilConn(conn) || !conn.Valid() {
		if !isNilConn(conn) {
			_ = conn.Close()
		}

		rebuilt, err := p.factory(context.Background())
		if err != nil {
			p.logger.Warn("pool_release_rebuild_failed", slog.Any("error", err))
			p.refill <- struct{}{}
			return
		}
		conn = rebuilt
	}

	select {
	case p.idle <- conn:
	case <-p.closed:
		_ = conn.Close()
	}
}

// refillLoop restores slots lost to failed rebuilds. Linear backoff: each
// consecutive failure waits one base delay longer, capped at refillMaxDelay.
func (p *Pool[T]) refillLoop() {
	delay := refillBaseDelay

	for {
		select {
		case <-p.closed:
			return
		case <-p.refill:
		}

		for {
			conn, err := p.factory(context.Background())
			if err == nil {
				select {
				case p.idle <- conn:
				case <-p.closed:
					_ = conn.Close()
					return
				}
				delay = refillBaseDelay
				break
			}

			p.logger.Warn("pool_refill_failed",
				slog.Duration("retry_in", delay),
				slog.Any("error", err),
			)

			select {
			case <-p.closed:
				return
			case <-time.After(delay):
			}

			if delay < refillMaxDelay {
				delay += refillBaseDelay
			}
		}
	}
}

// Close drains and closes every idle connection. Leased connections are
// closed as their leases are released.
func (p *Pool[T]) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for {
			select {
			case conn := <-p.idle:
				if !isNilConn(conn) {
					_ = conn.Close()
				}
			default:
				return
			}
		}
	})
}

// # Lease

// Lease is a non-shareable holder for an acquired connection. Close is safe
// to call multiple times and must run on every exit path — deferring it
// immediately after Acquire also covers panics.
type Lease[T Conn] struct {
	pool *Pool[T]
	conn T
	once sync.Once
}

// Conn exposes the held connection.
func (lease *Lease[T]) Conn() T { return lease.conn }

// Close returns the connection to the pool. Idempotent.
func (lease *Lease[T]) Close() {
	lease.once.Do(func() {
		lease.pool.release(lease.conn)
	})
}

// isNilConn reports whether a generically-typed connection holds a nil
// pointer, which Valid() could not be called on safely.
func isNilConn(conn any) bool {
	if conn == nil {
		return true
	}
	value := reflect.ValueOf(conn)
	switch value.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
		return value.IsNil()
	default:
		return false
	}
}
