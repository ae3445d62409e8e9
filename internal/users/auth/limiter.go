// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/cache"
	"github.com/taibuivan/yomira-passport/internal/platform/constants"
)

// # Login Attempt Limiter

// LimiterConfig carries the tunable parameters of the login limiter.
type LimiterConfig struct {
	// MaxFailed is the number of failures inside the window that trips the lock.
	MaxFailed int64
	// Window is the sliding lifetime of the failure counter.
	Window time.Duration
	// LockDuration is how long a tripped lock lasts.
	LockDuration time.Duration
}

// LoginLimiter tracks failed login attempts per mobile in the cache and
// locks the subject out once the threshold is reached.
//
// # Failure Policy
//
// Cache errors on Check fail closed: an outage must not let an attacker
// bypass an active lockout.
type LoginLimiter struct {
	store  cache.Store
	config LimiterConfig
	logger *slog.Logger
}

// NewLoginLimiter constructs a [LoginLimiter].
func NewLoginLimiter(store cache.Store, config LimiterConfig, logger *slog.Logger) *LoginLimiter {
	return &LoginLimiter{store: store, config: config, logger: logger}
}

func failedKey(mobile string) string {
	return constants.RedisPrefixLoginFailed + mobile
}

func loginLockKey(mobile string) string {
	return constants.RedisPrefixLoginLock + mobile
}

/*
Check rejects the attempt while the subject is locked out.

Parameters:
  - ctx: context.Context
  - mobile: string

Returns:
  - error: apperr.AccountLocked with the residual lock duration, or
    ServiceUnavailable on cache failure
*/
func (limiter *LoginLimiter) Check(ctx context.Context, mobile string) error {
	locked, err := limiter.store.Exists(ctx, loginLockKey(mobile))
	if err != nil {
		return err
	}
	if !locked {
		return nil
	}

	remaining, _ := limiter.store.TTL(ctx, loginLockKey(mobile))
	return apperr.AccountLocked(int64(remaining.Seconds()))
}

/*
RecordFailure counts one failed attempt and trips the lock when the count
reaches the threshold.

Description: The counter carries the window TTL from its first increment.
The TTL write is best-effort; the lock write is not.

Parameters:
  - ctx: context.Context
  - mobile: string

Returns:
  - error: Cache transport failures
*/
func (limiter *LoginLimiter) RecordFailure(ctx context.Context, mobile string) error {
	count, err := limiter.store.Incr(ctx, failedKey(mobile))
	if err != nil {
		return err
	}

	if count == 1 {
		if err := limiter.store.Expire(ctx, failedKey(mobile), limiter.config.Window); err != nil {
			limiter.logger.Warn("login_limiter_window_set_failed",
				slog.String("mobile", mobile),
				slog.Any("error", err),
			)
		}
	}

	if count >= limiter.config.MaxFailed {
		if err := limiter.store.SetWithTTL(ctx, loginLockKey(mobile), "1", limiter.config.LockDuration); err != nil {
			return err
		}
		limiter.logger.Warn("login_limiter_locked",
			slog.String("mobile", mobile),
			slog.Int64("failed_attempts", count),
		)
	}

	return nil
}

/*
Clear resets the failure counter after a successful authentication.

Parameters:
  - ctx: context.Context
  - mobile: string

Returns:
  - error: Cache transport failures
*/
func (limiter *LoginLimiter) Clear(ctx context.Context, mobile string) error {
	return limiter.store.Del(ctx, failedKey(mobile))
}
