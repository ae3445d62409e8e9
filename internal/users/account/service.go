// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/sec"
	"github.com/taibuivan/yomira-passport/internal/platform/validate"
	"github.com/taibuivan/yomira-passport/internal/sms"
	"github.com/taibuivan/yomira-passport/internal/users/auth"
	"github.com/taibuivan/yomira-passport/pkg/pagination"
)

// # Service Layer

// Service orchestrates profile management and account administration.
type Service struct {
	users    UserStore
	sessions SessionStore
	codes    CodeVerifier
	policy   sec.PasswordPolicy
	logger   *slog.Logger
}

// NewService constructs a new account [Service] with its dependencies.
func NewService(
	users UserStore,
	sessions SessionStore,
	codes CodeVerifier,
	policy sec.PasswordPolicy,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		codes:    codes,
		policy:   policy,
		logger:   logger,
	}
}

// # Self-Service

/*
GetCurrentUser retrieves the full private profile of the caller.

Parameters:
  - ctx: context.Context
  - userUUID: string

Returns:
  - *auth.User: The hydrated profile
  - error: apperr.UserNotFound or storage failures
*/
func (service *Service) GetCurrentUser(ctx context.Context, userUUID string) (*auth.User, error) {
	return service.users.FindByUUID(ctx, userUUID)
}

// UpdateUserInput defines the mutable subset of profile fields.
type UpdateUserInput struct {
	DisplayName *string
}

/*
UpdateUser applies a partial profile change.

Description: The display name is NFC-normalized before persisting so two
visually identical names compare equal.

Parameters:
  - ctx: context.Context
  - userUUID: string
  - input: UpdateUserInput

Returns:
  - *auth.User: The updated profile
  - error: InvalidArgument, UserNotFound, or storage failures
*/
func (service *Service) UpdateUser(ctx context.Context, userUUID string, input UpdateUserInput) (*auth.User, error) {
	user, err := service.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		validator := &validate.Validator{}
		err := validator.
			Required(auth.FieldDisplayName, *input.DisplayName).
			MaxLen(auth.FieldDisplayName, *input.DisplayName, auth.MaxDisplayNameLength).
			Err()
		if err != nil {
			return nil, err
		}
		user.DisplayName = norm.NFC.String(*input.DisplayName)
	}

	if err := service.users.Update(ctx, user); err != nil {
		return nil, err
	}

	service.logger.Info("account_profile_updated",
		slog.Int64("user_id", user.ID),
	)
	return user, nil
}

/*
ChangePassword replaces the password after proving knowledge of the old one.

Description: Every other session is revoked; the session presented as
currentRefresh survives so the caller stays signed in. An empty
currentRefresh revokes everything.

Parameters:
  - ctx: context.Context
  - userUUID: string
  - oldPassword: string
  - newPassword: string
  - currentRefresh: string (raw refresh token of the calling session; optional)

Returns:
  - error: WrongPassword, InvalidArgument, UserNotFound, or storage failures
*/
func (service *Service) ChangePassword(ctx context.Context, userUUID, oldPassword, newPassword, currentRefresh string) error {
	validator := &validate.Validator{}
	if err := validator.Password(auth.FieldNewPassword, newPassword, service.policy).Err(); err != nil {
		return err
	}

	user, err := service.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return apperr.WrongPassword()
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := service.users.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return err
	}

	// Cut off every other holder of the old credential.
	var revoked int64
	if currentRefresh != "" {
		revoked, err = service.sessions.DeleteByUserExcept(ctx, user.ID, sec.Fingerprint(currentRefresh))
	} else {
		revoked, err = service.sessions.DeleteByUser(ctx, user.ID)
	}
	if err != nil {
		return err
	}

	service.logger.Info("account_password_changed",
		slog.Int64("user_id", user.ID),
		slog.Int64("revoked_sessions", revoked),
	)
	return nil
}

/*
DeleteUser soft-deletes the caller's account after SMS proof.

Description: Requires a fresh code for the delete_user scene, so a stolen
bearer token alone cannot destroy the account. The code is consumed only
after the deletion succeeded.

Parameters:
  - ctx: context.Context
  - userUUID: string
  - code: string

Returns:
  - error: Captcha*, UserNotFound, or storage failures
*/
func (service *Service) DeleteUser(ctx context.Context, userUUID, code string) error {
	validator := &validate.Validator{}
	if err := validator.Code(auth.FieldCode, code).Err(); err != nil {
		return err
	}

	user, err := service.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}

	if err := service.codes.Verify(ctx, sms.SceneDeleteUser, user.Mobile, code); err != nil {
		return err
	}

	if err := service.users.SoftDelete(ctx, user.ID); err != nil {
		return err
	}

	revoked, err := service.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := service.codes.Consume(ctx, sms.SceneDeleteUser, user.Mobile); err != nil {
		service.logger.Warn("account_delete_code_consume_failed",
			slog.String("mobile", user.Mobile),
			slog.Any("error", err),
		)
	}

	service.logger.Warn("account_user_deleted",
		slog.Int64("user_id", user.ID),
		slog.Int64("revoked_sessions", revoked),
	)
	return nil
}

// # Administration

/*
GetUser retrieves any account by public identifier. Admin only; the role
check lives in the HTTP layer.

Parameters:
  - ctx: context.Context
  - userUUID: string

Returns:
  - *auth.User: The account
  - error: UserNotFound or storage failures
*/
func (service *Service) GetUser(ctx context.Context, userUUID string) (*auth.User, error) {
	return service.users.FindByUUID(ctx, userUUID)
}

/*
ListUsers returns one page of accounts. Admin only.

Parameters:
  - ctx: context.Context
  - params: pagination.Params

Returns:
  - []auth.User: Page content
  - pagination.Meta: Page metadata
  - error: Storage failures
*/
func (service *Service) ListUsers(ctx context.Context, params pagination.Params) ([]auth.User, pagination.Meta, error) {
	total, err := service.users.Count(ctx)
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	users, err := service.users.List(ctx, params.Limit, params.Offset())
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	return users, pagination.NewMeta(params.Page, params.Limit, int(total)), nil
}

/*
DisableUser blocks an account and revokes every session. Admin only.

Parameters:
  - ctx: context.Context
  - userUUID: string

Returns:
  - error: UserNotFound or storage failures
*/
func (service *Service) DisableUser(ctx context.Context, userUUID string) error {
	user, err := service.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}

	if err := service.users.SetDisabled(ctx, user.ID, true); err != nil {
		return err
	}

	// A disabled account must not keep working through old sessions.
	revoked, err := service.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		return err
	}

	service.logger.Warn("account_user_disabled",
		slog.Int64("user_id", user.ID),
		slog.Int64("revoked_sessions", revoked),
	)
	return nil
}

/*
EnableUser lifts the disabled flag. Admin only. The user must
authenticate afresh; no sessions are restored.

Parameters:
  - ctx: context.Context
  - userUUID: string

Returns:
  - error: UserNotFound or storage failures
*/
func (service *Service) EnableUser(ctx context.Context, userUUID string) error {
	user, err := service.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}

	if err := service.users.SetDisabled(ctx, user.ID, false); err != nil {
		return err
	}

	service.logger.Info("account_user_enabled",
		slog.Int64("user_id", user.ID),
	)
	return nil
}
