// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/cache"
	"github.com/taibuivan/yomira-passport/internal/platform/sec"
	"github.com/taibuivan/yomira-passport/internal/sms"
	"github.com/taibuivan/yomira-passport/internal/users/auth"
)

// # Fakes

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	byID   map[int64]*auth.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int64]*auth.User)}
}

func (repo *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, existing := range repo.byID {
		if existing.Mobile == user.Mobile {
			return apperr.MobileTaken()
		}
	}
	repo.nextID++
	user.ID = repo.nextID
	clone := *user
	repo.byID[user.ID] = &clone
	return nil
}

func (repo *fakeUserRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.byID[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.UserNotFound()
}

func (repo *fakeUserRepo) FindByUUID(_ context.Context, uuid string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.byID {
		if user.UUID == uuid {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.UserNotFound()
}

func (repo *fakeUserRepo) FindByMobile(_ context.Context, mobile string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.byID {
		if user.Mobile == mobile {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.UserNotFound()
}

func (repo *fakeUserRepo) Update(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if stored, ok := repo.byID[user.ID]; ok {
		stored.DisplayName = user.DisplayName
	}
	return nil
}

func (repo *fakeUserRepo) UpdatePassword(_ context.Context, userID int64, newHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if stored, ok := repo.byID[userID]; ok {
		stored.PasswordHash = newHash
	}
	return nil
}

func (repo *fakeUserRepo) SetDisabled(_ context.Context, userID int64, disabled bool) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if stored, ok := repo.byID[userID]; ok {
		stored.Disabled = disabled
	}
	return nil
}

func (repo *fakeUserRepo) SoftDelete(_ context.Context, userID int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.byID, userID)
	return nil
}

// fakeSessionRepo is an in-memory SessionRepository. Insertion order stands
// in for created_at when picking the oldest row.
type fakeSessionRepo struct {
	mu     sync.Mutex
	rows   map[string]*auth.Session
	nextID int64
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: make(map[string]*auth.Session)}
}

func (repo *fakeSessionRepo) SaveRefresh(_ context.Context, userID int64, fingerprint string, ttl time.Duration) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, exists := repo.rows[fingerprint]; exists {
		return apperr.Internal(nil)
	}
	repo.nextID++
	repo.rows[fingerprint] = &auth.Session{
		ID:        repo.nextID,
		UserID:    userID,
		TokenHash: fingerprint,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
	return nil
}

func (repo *fakeSessionRepo) FindByFingerprint(_ context.Context, fingerprint string) (*auth.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.rows[fingerprint]; ok {
		clone := *session
		return &clone, nil
	}
	return nil, apperr.TokenInvalid()
}

func (repo *fakeSessionRepo) IsValid(_ context.Context, fingerprint string) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	session, ok := repo.rows[fingerprint]
	return ok && session.ExpiresAt.After(time.Now()), nil
}

func (repo *fakeSessionRepo) CountActive(_ context.Context, userID int64) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for _, session := range repo.rows {
		if session.UserID == userID && session.ExpiresAt.After(time.Now()) {
			count++
		}
	}
	return count, nil
}

func (repo *fakeSessionRepo) DeleteByFingerprint(_ context.Context, fingerprint string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.rows, fingerprint)
	return nil
}

func (repo *fakeSessionRepo) DeleteOldest(_ context.Context, userID int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var oldestKey string
	var oldestID int64
	for key, session := range repo.rows {
		if session.UserID != userID {
			continue
		}
		if oldestKey == "" || session.ID < oldestID {
			oldestKey = key
			oldestID = session.ID
		}
	}
	if oldestKey != "" {
		delete(repo.rows, oldestKey)
	}
	return nil
}

func (repo *fakeSessionRepo) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for key, session := range repo.rows {
		if session.UserID == userID {
			delete(repo.rows, key)
			count++
		}
	}
	return count, nil
}

func (repo *fakeSessionRepo) SweepExpired(_ context.Context) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for key, session := range repo.rows {
		if !session.ExpiresAt.After(time.Now()) {
			delete(repo.rows, key)
			count++
		}
	}
	return count, nil
}

// fakeCodes accepts one configured code per scene and records consumes.
type fakeCodes struct {
	accept   map[sms.Scene]string
	consumed map[sms.Scene]int
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{
		accept:   make(map[sms.Scene]string),
		consumed: make(map[sms.Scene]int),
	}
}

func (codes *fakeCodes) Verify(_ context.Context, scene sms.Scene, _ string, supplied string) error {
	expected, ok := codes.accept[scene]
	if !ok {
		return apperr.CaptchaExpired()
	}
	if supplied != expected {
		return apperr.CaptchaWrong(4)
	}
	return nil
}

func (codes *fakeCodes) Consume(_ context.Context, scene sms.Scene, _ string) error {
	codes.consumed[scene]++
	return nil
}

// # Harness

type harness struct {
	service  *auth.Service
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	codes    *fakeCodes
	store    *cache.Memory
	limiter  *auth.LoginLimiter
}

func newHarness(t *testing.T, maxSessions int64) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cache.NewMemory()
	limiter := auth.NewLoginLimiter(store, auth.LimiterConfig{
		MaxFailed:    3,
		Window:       15 * time.Minute,
		LockDuration: 30 * time.Minute,
	}, logger)

	codec, err := sec.NewTokenCodec(
		"0123456789abcdef0123456789abcdef",
		"passport.test",
		15*time.Minute,
		24*time.Hour,
	)
	require.NoError(t, err)

	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	codes := newFakeCodes()

	service := auth.NewService(
		users, sessions, limiter, codec, codes,
		sec.DefaultPasswordPolicy(), maxSessions, logger,
	)

	return &harness{
		service:  service,
		users:    users,
		sessions: sessions,
		codes:    codes,
		store:    store,
		limiter:  limiter,
	}
}

func (h *harness) register(t *testing.T, mobile string) *auth.AuthResult {
	t.Helper()
	h.codes.accept[sms.SceneRegister] = "123456"
	result, err := h.service.Register(context.Background(), auth.RegisterInput{
		Mobile:      mobile,
		Code:        "123456",
		Password:    "Aa1!aaaa",
		DisplayName: "alice",
	})
	require.NoError(t, err)
	return result
}

// # Tests

/*
TestService_Register covers the happy path and that a following password
login succeeds with a different access token.
*/
func TestService_Register(t *testing.T) {
	h := newHarness(t, 0)

	result := h.register(t, "13900000001")
	require.NotNil(t, result.User)
	assert.Positive(t, result.User.ID)
	assert.NotEmpty(t, result.User.UUID)
	assert.Equal(t, sec.RoleUser, result.User.Role)
	assert.NotEmpty(t, result.Tokens.Access)
	assert.Equal(t, 1, h.codes.consumed[sms.SceneRegister])

	login, err := h.service.LoginByPassword(context.Background(), "13900000001", "Aa1!aaaa")
	require.NoError(t, err)
	assert.NotEqual(t, result.Tokens.Access, login.Tokens.Access)
	assert.NotEqual(t, result.Tokens.Refresh, login.Tokens.Refresh)
}

/*
TestService_Register_ValidationOrder checks that the first reported field
follows the fixed order mobile, password, code, display name.
*/
func TestService_Register_ValidationOrder(t *testing.T) {
	h := newHarness(t, 0)

	// Everything is broken: mobile must be reported first.
	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Mobile:      "bad",
		Code:        "nope",
		Password:    "weak",
		DisplayName: "",
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	require.NotEmpty(t, ae.Details)
	assert.Equal(t, auth.FieldMobile, ae.Details[0].Field)

	// Valid mobile, broken password: password is reported first.
	_, err = h.service.Register(context.Background(), auth.RegisterInput{
		Mobile:      "13900000001",
		Code:        "nope",
		Password:    "weak",
		DisplayName: "",
	})
	require.Error(t, err)
	ae = apperr.As(err)
	require.NotNil(t, ae)
	require.NotEmpty(t, ae.Details)
	assert.Equal(t, auth.FieldPassword, ae.Details[0].Field)
}

/*
TestService_Register_MobileTaken checks the duplicate path: the conflict
surfaces as MobileTaken and the verified code is NOT consumed, so the
client can retry after resolving the conflict.
*/
func TestService_Register_MobileTaken(t *testing.T) {
	h := newHarness(t, 0)
	h.register(t, "13900000001")
	consumedBefore := h.codes.consumed[sms.SceneRegister]

	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Mobile:      "13900000001",
		Code:        "123456",
		Password:    "Aa1!aaaa",
		DisplayName: "bob",
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeMobileTaken))
	assert.Equal(t, consumedBefore, h.codes.consumed[sms.SceneRegister])
}

/*
TestService_LoginByPassword_Lockout reproduces the lockout scenario: with
max_failed = 3, the first three bad attempts return WrongPassword, the
fourth and fifth AccountLocked, and after the lock elapses the correct
password works again.
*/
func TestService_LoginByPassword_Lockout(t *testing.T) {
	h := newHarness(t, 0)
	h.register(t, "13900000002")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.service.LoginByPassword(ctx, "13900000002", "WRONG")
		assert.True(t, apperr.HasCode(err, apperr.CodeWrongPassword), "attempt %d", i+1)
	}

	for i := 0; i < 2; i++ {
		_, err := h.service.LoginByPassword(ctx, "13900000002", "WRONG")
		assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked), "locked attempt %d", i+1)
	}

	// Even the correct password is rejected while locked.
	_, err := h.service.LoginByPassword(ctx, "13900000002", "Aa1!aaaa")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked))

	// After the lock elapses, the correct password succeeds.
	h.store.Now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = h.service.LoginByPassword(ctx, "13900000002", "Aa1!aaaa")
	assert.NoError(t, err)
}

/*
TestService_LoginByPassword_UnknownMobile checks enumeration safety: an
unknown mobile costs an attempt and returns the same WrongPassword.
*/
func TestService_LoginByPassword_UnknownMobile(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.service.LoginByPassword(ctx, "13999999999", "whatever")
	assert.True(t, apperr.HasCode(err, apperr.CodeWrongPassword))

	// The failure was recorded: two more unknown-mobile attempts trip the lock.
	_, _ = h.service.LoginByPassword(ctx, "13999999999", "whatever")
	_, _ = h.service.LoginByPassword(ctx, "13999999999", "whatever")
	_, err = h.service.LoginByPassword(ctx, "13999999999", "whatever")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked))
}

/*
TestService_LoginByPassword_Disabled checks that a disabled account cannot
authenticate even with the right password.
*/
func TestService_LoginByPassword_Disabled(t *testing.T) {
	h := newHarness(t, 0)
	result := h.register(t, "13900000005")
	require.NoError(t, h.users.SetDisabled(context.Background(), result.User.ID, true))

	_, err := h.service.LoginByPassword(context.Background(), "13900000005", "Aa1!aaaa")
	assert.True(t, apperr.HasCode(err, apperr.CodeUserDisabled))
}

/*
TestService_LoginByCode covers the code login path including the unknown
subject case.
*/
func TestService_LoginByCode(t *testing.T) {
	h := newHarness(t, 0)
	h.register(t, "13900000004")
	ctx := context.Background()

	h.codes.accept[sms.SceneLogin] = "654321"

	result, err := h.service.LoginByCode(ctx, "13900000004", "654321")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.Refresh)
	assert.Equal(t, 1, h.codes.consumed[sms.SceneLogin])

	_, err = h.service.LoginByCode(ctx, "13900000004", "000000")
	assert.True(t, apperr.HasCode(err, apperr.CodeCaptchaWrong))

	_, err = h.service.LoginByCode(ctx, "13999999999", "654321")
	assert.True(t, apperr.HasCode(err, apperr.CodeUserNotFound))
}

/*
TestService_RefreshToken_Rotation reproduces the rotation scenario: a
rotated refresh token is never reusable, while its replacement is.
*/
func TestService_RefreshToken_Rotation(t *testing.T) {
	h := newHarness(t, 0)
	first := h.register(t, "13900000004")
	ctx := context.Background()

	second, err := h.service.RefreshToken(ctx, first.Tokens.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.Refresh, second.Tokens.Refresh)

	// The old token was rotated away.
	_, err = h.service.RefreshToken(ctx, first.Tokens.Refresh)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	// The replacement rotates fine.
	third, err := h.service.RefreshToken(ctx, second.Tokens.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, second.Tokens.Refresh, third.Tokens.Refresh)

	// Garbage is rejected structurally.
	_, err = h.service.RefreshToken(ctx, "not.a.token")
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenInvalid))
}

/*
TestService_Logout checks idempotency and the empty-token no-op.
*/
func TestService_Logout(t *testing.T) {
	h := newHarness(t, 0)
	result := h.register(t, "13900000006")
	ctx := context.Background()

	require.NoError(t, h.service.Logout(ctx, ""))
	require.NoError(t, h.service.Logout(ctx, result.Tokens.Refresh))

	_, err := h.service.RefreshToken(ctx, result.Tokens.Refresh)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	// A second logout of the same token is still fine.
	require.NoError(t, h.service.Logout(ctx, result.Tokens.Refresh))
}

/*
TestService_LogoutAll checks that no active session survives.
*/
func TestService_LogoutAll(t *testing.T) {
	h := newHarness(t, 0)
	result := h.register(t, "13900000007")
	ctx := context.Background()

	_, err := h.service.LoginByPassword(ctx, "13900000007", "Aa1!aaaa")
	require.NoError(t, err)

	require.NoError(t, h.service.LogoutAll(ctx, result.User.UUID))

	active, err := h.sessions.CountActive(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Zero(t, active)
}

/*
TestService_ResetPassword reproduces the revoke-all scenario: after a
reset, every previously issued refresh token is dead and the new password
logs in.
*/
func TestService_ResetPassword(t *testing.T) {
	h := newHarness(t, 0)
	first := h.register(t, "13900000008")
	ctx := context.Background()

	second, err := h.service.LoginByPassword(ctx, "13900000008", "Aa1!aaaa")
	require.NoError(t, err)

	h.codes.accept[sms.SceneResetPassword] = "999000"
	require.NoError(t, h.service.ResetPassword(ctx, "13900000008", "999000", "NewAa1!aa"))
	assert.Equal(t, 1, h.codes.consumed[sms.SceneResetPassword])

	_, err = h.service.RefreshToken(ctx, first.Tokens.Refresh)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))
	_, err = h.service.RefreshToken(ctx, second.Tokens.Refresh)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	_, err = h.service.LoginByPassword(ctx, "13900000008", "Aa1!aaaa")
	assert.True(t, apperr.HasCode(err, apperr.CodeWrongPassword))
	_, err = h.service.LoginByPassword(ctx, "13900000008", "NewAa1!aa")
	assert.NoError(t, err)
}

/*
TestService_MaxSessions checks the per-user session cap: a login at the
cap evicts the oldest session instead of failing.
*/
func TestService_MaxSessions(t *testing.T) {
	h := newHarness(t, 2)
	first := h.register(t, "13900000009")
	ctx := context.Background()

	_, err := h.service.LoginByPassword(ctx, "13900000009", "Aa1!aaaa")
	require.NoError(t, err)

	// Third session: the registration session (oldest) gets evicted.
	_, err = h.service.LoginByPassword(ctx, "13900000009", "Aa1!aaaa")
	require.NoError(t, err)

	active, err := h.sessions.CountActive(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	_, err = h.service.RefreshToken(ctx, first.Tokens.Refresh)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))
}

/*
TestService_ValidateAccessToken checks the peer-service sidecar.
*/
func TestService_ValidateAccessToken(t *testing.T) {
	h := newHarness(t, 0)
	result := h.register(t, "13900000010")

	principal, err := h.service.ValidateAccessToken(context.Background(), result.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, result.User.UUID, principal.UUID)
	assert.Equal(t, "13900000010", principal.Mobile)
	assert.Equal(t, sec.RoleUser, principal.Role)

	_, err = h.service.ValidateAccessToken(context.Background(), "")
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenMissing))
}
