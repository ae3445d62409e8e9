// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sms_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/cache"
	"github.com/taibuivan/yomira-passport/internal/sms"
)

const testMobile = "13900000003"

// recordingSender captures delivered codes and optionally fails.
type recordingSender struct {
	codes []string
	fail  bool
}

func (sender *recordingSender) Send(_ context.Context, _, code string) error {
	if sender.fail {
		return errors.New("gateway down")
	}
	sender.codes = append(sender.codes, code)
	return nil
}

func testConfig() sms.Config {
	return sms.Config{
		CodeLength:   6,
		CodeTTL:      5 * time.Minute,
		SendInterval: 60 * time.Second,
		MaxRetry:     5,
		RetryTTL:     10 * time.Minute,
		LockDuration: 30 * time.Minute,
	}
}

func newController(store *cache.Memory, sender sms.Sender) *sms.Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sms.NewController(store, sender, testConfig(), logger)
}

/*
TestController_Issue covers the issue flow: code shape, cooldown on an
immediate second issue, and recovery after the cooldown elapses.
*/
func TestController_Issue(t *testing.T) {
	store := cache.NewMemory()
	sender := &recordingSender{}
	controller := newController(store, sender)
	ctx := context.Background()

	retryAfter, err := controller.Issue(ctx, sms.SceneLogin, testMobile)
	require.NoError(t, err)
	assert.Equal(t, int64(60), retryAfter)

	require.Len(t, sender.codes, 1)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), sender.codes[0])

	// Immediate second issue hits the cross-scene cooldown.
	_, err = controller.Issue(ctx, sms.SceneLogin, testMobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))

	// The cooldown is global: another scene is blocked too.
	_, err = controller.Issue(ctx, sms.SceneRegister, testMobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))

	// After the interval elapses, issuing works again.
	store.Now = func() time.Time { return time.Now().Add(61 * time.Second) }
	_, err = controller.Issue(ctx, sms.SceneLogin, testMobile)
	assert.NoError(t, err)
	assert.Len(t, sender.codes, 2)
}

/*
TestController_Issue_DeliveryFailureCompensates checks that a failed
delivery removes the stored code so Verify cannot succeed against a code
the subject never received.
*/
func TestController_Issue_DeliveryFailureCompensates(t *testing.T) {
	store := cache.NewMemory()
	sender := &recordingSender{fail: true}
	controller := newController(store, sender)
	ctx := context.Background()

	_, err := controller.Issue(ctx, sms.SceneLogin, testMobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))

	err = controller.Verify(ctx, sms.SceneLogin, testMobile, "000000")
	assert.True(t, apperr.HasCode(err, apperr.CodeCaptchaExpired))
}

/*
TestController_Verify_OneShot covers invariant behaviour around a single
issued code: wrong guesses decrement attempts, the right code verifies,
verification keeps the code alive until Consume, and Consume destroys it.
*/
func TestController_Verify_OneShot(t *testing.T) {
	store := cache.NewMemory()
	sender := &recordingSender{}
	controller := newController(store, sender)
	ctx := context.Background()

	_, err := controller.Issue(ctx, sms.SceneRegister, testMobile)
	require.NoError(t, err)
	code := sender.codes[0]

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	// A wrong guess reports remaining attempts.
	err = controller.Verify(ctx, sms.SceneRegister, testMobile, wrong)
	assert.True(t, apperr.HasCode(err, apperr.CodeCaptchaWrong))

	// The right code verifies.
	require.NoError(t, controller.Verify(ctx, sms.SceneRegister, testMobile, code))

	// The code survives verification: a retry after a failed business step
	// still works within the TTL.
	require.NoError(t, controller.Verify(ctx, sms.SceneRegister, testMobile, code))

	// Consume destroys it.
	require.NoError(t, controller.Consume(ctx, sms.SceneRegister, testMobile))
	err = controller.Verify(ctx, sms.SceneRegister, testMobile, code)
	assert.True(t, apperr.HasCode(err, apperr.CodeCaptchaExpired))
}

/*
TestController_Verify_Lockout checks that MaxRetry consecutive failures
lock the scene for both Verify and Issue, destroy the code, and leave the
cross-scene cooldown in place.
*/
func TestController_Verify_Lockout(t *testing.T) {
	store := cache.NewMemory()
	sender := &recordingSender{}
	controller := newController(store, sender)
	ctx := context.Background()

	_, err := controller.Issue(ctx, sms.SceneLogin, testMobile)
	require.NoError(t, err)
	code := sender.codes[0]

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	// Burn through the allowed attempts.
	for i := int64(0); i < testConfig().MaxRetry-1; i++ {
		err = controller.Verify(ctx, sms.SceneLogin, testMobile, wrong)
		assert.True(t, apperr.HasCode(err, apperr.CodeCaptchaWrong))
	}

	// The final failure flips the scene into lockout.
	err = controller.Verify(ctx, sms.SceneLogin, testMobile, wrong)
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked))

	// Even the correct code is now rejected.
	err = controller.Verify(ctx, sms.SceneLogin, testMobile, code)
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked))

	// Issue in the locked scene is rejected too.
	store.Now = func() time.Time { return time.Now().Add(2 * time.Minute) } // past cooldown, inside lock
	_, err = controller.Issue(ctx, sms.SceneLogin, testMobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))

	// Other scenes are unaffected by the lock (only by the cooldown, which
	// has elapsed by now).
	_, err = controller.Issue(ctx, sms.SceneRegister, testMobile)
	assert.NoError(t, err)
}

/*
TestController_FailClosed checks that a cache outage rejects the critical
path rather than silently bypassing cooldowns and lockouts.
*/
func TestController_FailClosed(t *testing.T) {
	store := cache.NewMemory()
	sender := &recordingSender{}
	controller := newController(store, sender)
	ctx := context.Background()

	store.Fail = true

	_, err := controller.Issue(ctx, sms.SceneLogin, testMobile)
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))

	err = controller.Verify(ctx, sms.SceneLogin, testMobile, "123456")
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))
}

/*
TestParseScene checks the scene whitelist used by the send endpoint.
*/
func TestParseScene(t *testing.T) {
	for _, value := range []string{"register", "login", "reset_password", "delete_user"} {
		scene, ok := sms.ParseScene(value)
		assert.True(t, ok)
		assert.Equal(t, value, string(scene))
	}

	_, ok := sms.ParseScene("promo")
	assert.False(t, ok)
}
