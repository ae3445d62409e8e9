// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/sec"
	"github.com/taibuivan/yomira-passport/internal/platform/validate"
	"github.com/taibuivan/yomira-passport/internal/sms"
)

// # Contracts & Types

// MaxDisplayNameLength bounds the display name in Unicode codepoints.
const MaxDisplayNameLength = 32

// CodeVerifier is the seam to the SMS controller. The orchestrator verifies
// before the business step and consumes only after it succeeded, so a failed
// step can be retried with the same code inside its TTL.
type CodeVerifier interface {
	Verify(ctx context.Context, scene sms.Scene, mobile, supplied string) error
	Consume(ctx context.Context, scene sms.Scene, mobile string) error
}

// AuthResult is the outcome of every credential-issuing flow.
type AuthResult struct {
	User   *User          `json:"user"`
	Tokens *sec.TokenPair `json:"tokens"`
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// or rotation logic must be reviewed by the security team.
type Service struct {
	users       UserRepository
	sessions    SessionRepository
	limiter     *LoginLimiter
	codec       *sec.TokenCodec
	codes       CodeVerifier
	policy      sec.PasswordPolicy
	maxSessions int64
	logger      *slog.Logger
}

// NewService constructs a new auth [Service] with its collaborators.
func NewService(
	users UserRepository,
	sessions SessionRepository,
	limiter *LoginLimiter,
	codec *sec.TokenCodec,
	codes CodeVerifier,
	policy sec.PasswordPolicy,
	maxSessions int64,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		limiter:     limiter,
		codec:       codec,
		codes:       codes,
		policy:      policy,
		maxSessions: maxSessions,
		logger:      logger,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Mobile      string
	Code        string
	Password    string
	DisplayName string
}

/*
Register validates, verifies the SMS code, and persists a new account.

Description: Field validation runs in a fixed order (mobile, password,
code, display name) so clients always see the earliest broken field first.
The verification code is consumed only after the insert succeeded; an
insert conflict leaves the code usable for a retry.

Parameters:
  - ctx: context.Context
  - input: RegisterInput

Returns:
  - *AuthResult: Created user (hash blanked by serialization) plus tokens
  - error: InvalidArgument, Captcha*, MobileTaken, or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {

	// 1. Validate in the documented field order.
	validator := &validate.Validator{}
	err := validator.
		Mobile(FieldMobile, input.Mobile).
		Password(FieldPassword, input.Password, service.policy).
		Code(FieldCode, input.Code).
		Required(FieldDisplayName, input.DisplayName).
		MaxLen(FieldDisplayName, input.DisplayName, MaxDisplayNameLength).
		Err()
	if err != nil {
		return nil, err
	}

	// 2. Verify the one-time code for the register scene.
	if err := service.codes.Verify(ctx, sms.SceneRegister, input.Mobile, input.Code); err != nil {
		return nil, err
	}

	// 3. Never store plain text.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		UUID:         uuid.NewString(),
		Mobile:       input.Mobile,
		PasswordHash: hashedPassword,
		DisplayName:  norm.NFC.String(input.DisplayName),
		Role:         sec.RoleUser,
	}

	// 4. Persist. A duplicate mobile comes back as MobileTaken and leaves
	// the verified code alive for a retry.
	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// 5. Issue the twin tokens and persist the refresh fingerprint.
	tokens, err := service.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	// 6. The business step succeeded; burn the code.
	if err := service.codes.Consume(ctx, sms.SceneRegister, input.Mobile); err != nil {
		service.logger.Warn("auth_register_code_consume_failed",
			slog.String("mobile", input.Mobile),
			slog.Any("error", err),
		)
	}

	service.logger.Info("auth_user_registered",
		slog.Int64("user_id", user.ID),
		slog.String("mobile", user.Mobile),
	)

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// # Login Flows

/*
LoginByPassword authenticates with mobile number and password.

Description: The limiter runs first, so a locked subject is rejected before
any credential work. An unknown mobile records a failure and returns the
same WrongPassword as a bad password, so callers cannot probe which numbers
are registered.

Parameters:
  - ctx: context.Context
  - mobile: string
  - password: string

Returns:
  - *AuthResult: User plus fresh tokens
  - error: AccountLocked, WrongPassword, UserDisabled, or storage errors
*/
func (service *Service) LoginByPassword(ctx context.Context, mobile, password string) (*AuthResult, error) {

	// 1. Lockout gate.
	if err := service.limiter.Check(ctx, mobile); err != nil {
		return nil, err
	}

	// 2. Lookup. Unknown subjects still cost an attempt.
	user, err := service.users.FindByMobile(ctx, mobile)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeUserNotFound) {
			if recordErr := service.limiter.RecordFailure(ctx, mobile); recordErr != nil {
				return nil, recordErr
			}
			return nil, apperr.WrongPassword()
		}
		return nil, err
	}

	// 3. Disabled accounts cannot authenticate.
	if user.Disabled {
		return nil, apperr.UserDisabled()
	}

	// 4. Constant-time hash comparison.
	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		if recordErr := service.limiter.RecordFailure(ctx, mobile); recordErr != nil {
			return nil, recordErr
		}
		return nil, apperr.WrongPassword()
	}

	// 5. Success clears the failure counter.
	if err := service.limiter.Clear(ctx, mobile); err != nil {
		service.logger.Warn("auth_limiter_clear_failed",
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
	}

	tokens, err := service.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

/*
LoginByCode authenticates with mobile number and a one-time SMS code.

Parameters:
  - ctx: context.Context
  - mobile: string
  - code: string

Returns:
  - *AuthResult: User plus fresh tokens
  - error: Captcha*, UserNotFound, UserDisabled, or storage errors
*/
func (service *Service) LoginByCode(ctx context.Context, mobile, code string) (*AuthResult, error) {

	// 1. Verify the code for the login scene.
	if err := service.codes.Verify(ctx, sms.SceneLogin, mobile, code); err != nil {
		return nil, err
	}

	// 2. Lookup and disabled check.
	user, err := service.users.FindByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, apperr.UserDisabled()
	}

	// 3. A code login also clears any password-failure streak.
	if err := service.limiter.Clear(ctx, mobile); err != nil {
		service.logger.Warn("auth_limiter_clear_failed",
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
	}

	tokens, err := service.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := service.codes.Consume(ctx, sms.SceneLogin, mobile); err != nil {
		service.logger.Warn("auth_login_code_consume_failed",
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// # Session Management

/*
RefreshToken rotates a refresh token into a fresh pair.

Description: Parse, resolve the user, then check the server-side
fingerprint record; a missing or expired record means the token was rotated
away or revoked. Rotation deletes the old fingerprint BEFORE persisting the
new one, so a crash in between leaves at worst an orphaned expired entry
for the sweeper. A rotated token is never reusable.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *AuthResult: User plus rotated tokens
  - error: TokenMissing/Invalid/Expired/Revoked, UserDisabled, or storage errors
*/
func (service *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResult, error) {

	// 1. Structural and signature validation.
	userID, err := service.codec.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	// 2. The subject must still exist and be enabled.
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, apperr.UserDisabled()
	}

	// 3. Server-side revocation check.
	fingerprint := sec.Fingerprint(refreshToken)
	valid, err := service.sessions.IsValid(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, apperr.TokenRevoked()
	}

	// 4. Rotate: delete old, then issue and persist new.
	if err := service.sessions.DeleteByFingerprint(ctx, fingerprint); err != nil {
		return nil, err
	}

	tokens, err := service.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

/*
Logout revokes one refresh token.

Description: Idempotent. An empty token is a successful no-op; the caller
may have nothing to invalidate.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - error: Storage failures
*/
func (service *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return service.sessions.DeleteByFingerprint(ctx, sec.Fingerprint(refreshToken))
}

/*
LogoutAll revokes every session of the identified user.

Parameters:
  - ctx: context.Context
  - userUUID: string

Returns:
  - error: UserNotFound or storage failures
*/
func (service *Service) LogoutAll(ctx context.Context, userUUID string) error {
	user, err := service.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}

	revoked, err := service.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		return err
	}

	service.logger.Info("auth_logout_all",
		slog.Int64("user_id", user.ID),
		slog.Int64("revoked_sessions", revoked),
	)
	return nil
}

// # Credential Recovery

/*
ResetPassword replaces the password after SMS proof of mobile ownership.

Description: Every existing session is revoked: a credential reset must cut
off whoever held the old ones. The code is consumed last, after the update
succeeded.

Parameters:
  - ctx: context.Context
  - mobile: string
  - code: string
  - newPassword: string

Returns:
  - error: InvalidArgument, Captcha*, UserNotFound, or storage errors
*/
func (service *Service) ResetPassword(ctx context.Context, mobile, code, newPassword string) error {

	// 1. Validate the new credential against policy.
	validator := &validate.Validator{}
	err := validator.
		Mobile(FieldMobile, mobile).
		Password(FieldNewPassword, newPassword, service.policy).
		Code(FieldCode, code).
		Err()
	if err != nil {
		return err
	}

	// 2. Prove mobile ownership.
	if err := service.codes.Verify(ctx, sms.SceneResetPassword, mobile, code); err != nil {
		return err
	}

	user, err := service.users.FindByMobile(ctx, mobile)
	if err != nil {
		return err
	}

	// 3. Replace the hash.
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := service.users.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return err
	}

	// 4. Invalidate every outstanding session.
	revoked, err := service.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		return err
	}

	// 5. Burn the code.
	if err := service.codes.Consume(ctx, sms.SceneResetPassword, mobile); err != nil {
		service.logger.Warn("auth_reset_code_consume_failed",
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
	}

	service.logger.Info("auth_password_reset",
		slog.Int64("user_id", user.ID),
		slog.Int64("revoked_sessions", revoked),
	)
	return nil
}

// # Token Validation

/*
ValidateAccessToken verifies a bearer token on behalf of peer services.

Parameters:
  - ctx: context.Context (unused; kept for interface symmetry)
  - token: string

Returns:
  - *sec.Principal: Verified caller identity
  - error: TokenMissing/Invalid/Expired
*/
func (service *Service) ValidateAccessToken(_ context.Context, token string) (*sec.Principal, error) {
	return service.codec.VerifyAccess(token)
}

// # Internals

// issueTokens signs a fresh pair and persists the refresh fingerprint,
// evicting the oldest session when the user is at the per-user cap.
func (service *Service) issueTokens(ctx context.Context, user *User) (*sec.TokenPair, error) {
	if service.maxSessions > 0 {
		active, err := service.sessions.CountActive(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if active >= service.maxSessions {
			if err := service.sessions.DeleteOldest(ctx, user.ID); err != nil {
				return nil, err
			}
			service.logger.Info("auth_session_evicted",
				slog.Int64("user_id", user.ID),
				slog.Int64("active_sessions", active),
			)
		}
	}

	tokens, err := service.codec.Issue(user.Identity())
	if err != nil {
		return nil, apperr.Internal(err)
	}

	fingerprint := sec.Fingerprint(tokens.Refresh)
	if err := service.sessions.SaveRefresh(ctx, user.ID, fingerprint, service.codec.RefreshTTL()); err != nil {
		return nil, err
	}

	return tokens, nil
}
