// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/cache"
	"github.com/taibuivan/yomira-passport/internal/users/auth"
)

func newLimiter(store *cache.Memory) *auth.LoginLimiter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewLoginLimiter(store, auth.LimiterConfig{
		MaxFailed:    3,
		Window:       15 * time.Minute,
		LockDuration: 30 * time.Minute,
	}, logger)
}

/*
TestLoginLimiter_TripAndExpire walks a subject from clean, through the
threshold, into the lock, and out the other side of the lock duration.
*/
func TestLoginLimiter_TripAndExpire(t *testing.T) {
	store := cache.NewMemory()
	limiter := newLimiter(store)
	ctx := context.Background()
	const mobile = "13900000001"

	require.NoError(t, limiter.Check(ctx, mobile))

	// Two failures stay below the threshold.
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.Check(ctx, mobile))

	// The third failure trips the lock.
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	err := limiter.Check(ctx, mobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked))

	// A different subject is unaffected.
	require.NoError(t, limiter.Check(ctx, "13900000002"))

	// The lock expires on its own.
	store.Now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	require.NoError(t, limiter.Check(ctx, mobile))
}

/*
TestLoginLimiter_WindowReset checks that the failure counter carries the
window TTL, so stale failures do not accumulate toward a lock.
*/
func TestLoginLimiter_WindowReset(t *testing.T) {
	store := cache.NewMemory()
	limiter := newLimiter(store)
	ctx := context.Background()
	const mobile = "13900000003"

	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.RecordFailure(ctx, mobile))

	// The window elapses; the counter restarts from scratch.
	store.Now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.Check(ctx, mobile))
}

/*
TestLoginLimiter_Clear checks that a success wipes the streak.
*/
func TestLoginLimiter_Clear(t *testing.T) {
	store := cache.NewMemory()
	limiter := newLimiter(store)
	ctx := context.Background()
	const mobile = "13900000004"

	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.Clear(ctx, mobile))

	// The streak restarts; two more failures still do not lock.
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.RecordFailure(ctx, mobile))
	require.NoError(t, limiter.Check(ctx, mobile))
}

/*
TestLoginLimiter_FailClosed checks that a cache outage rejects the
attempt instead of bypassing an active lock.
*/
func TestLoginLimiter_FailClosed(t *testing.T) {
	store := cache.NewMemory()
	limiter := newLimiter(store)
	ctx := context.Background()
	const mobile = "13900000005"

	store.Fail = true

	err := limiter.Check(ctx, mobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))

	err = limiter.RecordFailure(ctx, mobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))
}
