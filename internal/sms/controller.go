// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sms implements the one-time verification code lifecycle.

Codes are scoped to a (scene, mobile) pair and live entirely in the cache.
Four key families govern the state machine:

  - code: the N-digit code itself, expiring after code_ttl.
  - cooldown: a cross-scene send cooldown per mobile.
  - attempts: the failed-verify counter for this scene.
  - lockout: a temporary scene lock after too many failed verifies.

Failure Policy:

  - Cache reads on the critical path fail closed (ServiceUnavailable), so a
    cache outage can never bypass a cooldown or a lockout.
  - The cooldown write and the attempts TTL are best-effort side writes:
    they log and continue.
*/
package sms

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/cache"
	"github.com/taibuivan/yomira-passport/internal/platform/constants"
)

// # Delivery Contract

// Sender delivers a one-time code to a mobile number. The production
// implementation talks to the SMS gateway over a bounded connection pool;
// tests substitute a recording fake.
type Sender interface {
	Send(ctx context.Context, mobile, code string) error
}

// # Controller

// Config carries the tunable parameters of the code lifecycle.
type Config struct {
	// CodeLength is the number of decimal digits in a generated code.
	CodeLength int
	// CodeTTL is the lifetime of an issued code.
	CodeTTL time.Duration
	// SendInterval is the cross-scene cooldown between sends to one mobile.
	SendInterval time.Duration
	// MaxRetry is the number of failed verifies before the scene locks.
	MaxRetry int64
	// RetryTTL is the sliding window of the failed-verify counter.
	RetryTTL time.Duration
	// LockDuration is how long a scene lockout lasts.
	LockDuration time.Duration
}

// Controller orchestrates issue, verify, and consume over the cache.
type Controller struct {
	store  cache.Store
	sender Sender
	config Config
	logger *slog.Logger
}

// NewController constructs a [Controller].
func NewController(store cache.Store, sender Sender, config Config, logger *slog.Logger) *Controller {
	return &Controller{
		store:  store,
		sender: sender,
		config: config,
		logger: logger,
	}
}

// # Cache Keys

func codeKey(scene Scene, mobile string) string {
	return constants.RedisPrefixSmsCode + string(scene) + ":" + mobile
}

// cooldownKey is deliberately scene-free: one send cooldown per mobile,
// shared across every scene.
func cooldownKey(mobile string) string {
	return constants.RedisPrefixSmsInterval + mobile
}

func attemptsKey(scene Scene, mobile string) string {
	return constants.RedisPrefixSmsVerifyCount + string(scene) + ":" + mobile
}

func lockKey(scene Scene, mobile string) string {
	return constants.RedisPrefixSmsLock + string(scene) + ":" + mobile
}

// # Lifecycle

/*
Issue generates, stores, and delivers a fresh code for (scene, mobile).

Description: Rejects while the scene is locked or the mobile is cooling
down, then writes the code before attempting delivery. A delivery failure
compensates by deleting the stored code so the mobile is not left holding
a code it never received.

Parameters:
  - ctx: context.Context
  - scene: Scene
  - mobile: string (normalized mobile number)

Returns:
  - int64: Seconds until the caller may issue again (the cooldown)
  - error: RateLimited / ServiceUnavailable
*/
func (controller *Controller) Issue(ctx context.Context, scene Scene, mobile string) (int64, error) {

	// 1. Scene lockout check. Cache errors fail closed.
	locked, err := controller.store.Exists(ctx, lockKey(scene, mobile))
	if err != nil {
		return 0, err
	}
	if locked {
		remaining, _ := controller.store.TTL(ctx, lockKey(scene, mobile))
		return 0, apperr.RateLimited(int64(remaining.Seconds()))
	}

	// 2. Cross-scene send cooldown check.
	cooling, err := controller.store.Exists(ctx, cooldownKey(mobile))
	if err != nil {
		return 0, err
	}
	if cooling {
		remaining, _ := controller.store.TTL(ctx, cooldownKey(mobile))
		return 0, apperr.RateLimited(int64(remaining.Seconds()))
	}

	// 3. Generate the code with a cryptographic RNG.
	code, err := randomCode(controller.config.CodeLength)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	// 4. The code write must succeed before anything is sent.
	if err := controller.store.SetWithTTL(ctx, codeKey(scene, mobile), code, controller.config.CodeTTL); err != nil {
		return 0, err
	}

	// 5. Best-effort cooldown marker. A failure here is logged and the flow
	// continues; the code itself is still protected by its own TTL.
	if err := controller.store.SetWithTTL(ctx, cooldownKey(mobile), "1", controller.config.SendInterval); err != nil {
		controller.logger.Warn("sms_cooldown_set_failed",
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
	}

	// 6. Deliver. On failure, compensate by removing the stored code.
	if err := controller.sender.Send(ctx, mobile, code); err != nil {
		controller.logger.Error("sms_delivery_failed",
			slog.String("scene", string(scene)),
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
		_ = controller.store.Del(ctx, codeKey(scene, mobile))
		return 0, apperr.ServiceUnavailable("Verification code could not be delivered")
	}

	return int64(controller.config.SendInterval.Seconds()), nil
}

/*
Verify checks a supplied code against the stored one for (scene, mobile).

Description: Constant-time comparison. A mismatch increments the attempts
counter; reaching MaxRetry locks the scene and destroys the code. A match
clears the counter but deliberately KEEPS the code: it stays valid until
Consume, so a failure in the step that follows verification (a conflicting
user insert, say) can be retried with the same code inside its TTL.

Parameters:
  - ctx: context.Context
  - scene: Scene
  - mobile: string
  - supplied: string (client-provided code)

Returns:
  - error: AccountLocked / CaptchaExpired / CaptchaWrong / ServiceUnavailable
*/
func (controller *Controller) Verify(ctx context.Context, scene Scene, mobile, supplied string) error {

	// 1. Scene lockout check.
	locked, err := controller.store.Exists(ctx, lockKey(scene, mobile))
	if err != nil {
		return err
	}
	if locked {
		remaining, _ := controller.store.TTL(ctx, lockKey(scene, mobile))
		return apperr.AccountLocked(int64(remaining.Seconds()))
	}

	// 2. Load the stored code. Missing means expired or never issued.
	stored, found, err := controller.store.Get(ctx, codeKey(scene, mobile))
	if err != nil {
		return err
	}
	if !found {
		return apperr.CaptchaExpired()
	}

	// 3. Constant-time comparison.
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1 {
		// Clear the attempts counter; keep the code for Consume.
		if err := controller.store.Del(ctx, attemptsKey(scene, mobile)); err != nil {
			controller.logger.Warn("sms_attempts_clear_failed",
				slog.String("mobile", mobile),
				slog.Any("error", err),
			)
		}
		return nil
	}

	// 4. Mismatch: count the failure. A cache error here must NOT silently
	// allow unlimited retries, so it fails closed too.
	count, err := controller.store.Incr(ctx, attemptsKey(scene, mobile))
	if err != nil {
		return err
	}
	if count == 1 {
		if err := controller.store.Expire(ctx, attemptsKey(scene, mobile), controller.config.RetryTTL); err != nil {
			controller.logger.Warn("sms_attempts_expire_failed",
				slog.String("mobile", mobile),
				slog.Any("error", err),
			)
		}
	}

	if count >= controller.config.MaxRetry {
		// Lock the scene and destroy the code and counter. The cross-scene
		// cooldown is NOT touched; it may still be protecting other scenes.
		if err := controller.store.SetWithTTL(ctx, lockKey(scene, mobile), "1", controller.config.LockDuration); err != nil {
			return err
		}
		_ = controller.store.Del(ctx, codeKey(scene, mobile), attemptsKey(scene, mobile))

		controller.logger.Warn("sms_scene_locked",
			slog.String("scene", string(scene)),
			slog.String("mobile", mobile),
			slog.Int64("failed_attempts", count),
		)
		return apperr.AccountLocked(int64(controller.config.LockDuration.Seconds()))
	}

	return apperr.CaptchaWrong(controller.config.MaxRetry - count)
}

/*
Consume destroys the code for (scene, mobile).

Description: Called by the orchestrator after the business step that
accepted the verified code has succeeded. Unconditional and idempotent.

Parameters:
  - ctx: context.Context
  - scene: Scene
  - mobile: string

Returns:
  - error: Cache transport failures
*/
func (controller *Controller) Consume(ctx context.Context, scene Scene, mobile string) error {
	return controller.store.Del(ctx, codeKey(scene, mobile))
}

// randomCode draws a uniform N-digit decimal code from crypto/rand,
// zero-padded to length.
func randomCode(length int) (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	value, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("sms: code generation failed: %w", err)
	}
	return fmt.Sprintf("%0*d", length, value), nil
}
