// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles profile management and account administration.

It covers the self-service surface (view and update the own profile,
change password, delete the account) and the admin surface (lookup,
paginated listing, disable/enable).

# Architecture

  - Domain: This package depends on the auth package for the User entity.
  - Security: Destructive self-service operations require fresh SMS proof;
    admin operations sit behind the role guard in the HTTP layer.
*/
package account

import (
	"context"

	"github.com/taibuivan/yomira-passport/internal/sms"
	"github.com/taibuivan/yomira-passport/internal/users/auth"
)

// # Repository Contracts

// UserStore defines the persistence contract the account service needs.
type UserStore interface {
	/*
		FindByID retrieves a user record by its numeric id.

		Parameters:
		  - ctx: context.Context
		  - id: int64

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.UserNotFound or storage failures
	*/
	FindByID(ctx context.Context, id int64) (*auth.User, error)

	/*
		FindByUUID retrieves a user record by its public identifier.

		Parameters:
		  - ctx: context.Context
		  - uuid: string

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.UserNotFound or storage failures
	*/
	FindByUUID(ctx context.Context, uuid string) (*auth.User, error)

	/*
		Update persists the mutable profile fields of an existing user.

		Parameters:
		  - ctx: context.Context
		  - user: *auth.User

		Returns:
		  - error: Storage or constraint failures
	*/
	Update(ctx context.Context, user *auth.User) error

	/*
		UpdatePassword replaces the stored password hash.

		Parameters:
		  - ctx: context.Context
		  - userID: int64
		  - newHash: string

		Returns:
		  - error: Storage failures
	*/
	UpdatePassword(ctx context.Context, userID int64, newHash string) error

	/*
		SetDisabled flips the disabled flag on an account.

		Parameters:
		  - ctx: context.Context
		  - userID: int64
		  - disabled: bool

		Returns:
		  - error: Storage failures
	*/
	SetDisabled(ctx context.Context, userID int64, disabled bool) error

	/*
		SoftDelete flags an account as logically deleted.

		Parameters:
		  - ctx: context.Context
		  - userID: int64

		Returns:
		  - error: Storage failures
	*/
	SoftDelete(ctx context.Context, userID int64) error

	/*
		List returns one page of accounts ordered by creation time.

		Parameters:
		  - ctx: context.Context
		  - limit: int
		  - offset: int

		Returns:
		  - []auth.User: The page content
		  - error: Storage failures
	*/
	List(ctx context.Context, limit, offset int) ([]auth.User, error)

	/*
		Count returns the number of non-deleted accounts.

		Parameters:
		  - ctx: context.Context

		Returns:
		  - int64: Total account count
		  - error: Storage failures
	*/
	Count(ctx context.Context) (int64, error)
}

// SessionStore defines the revocation contract the account service needs.
type SessionStore interface {
	/*
		DeleteByUser removes every session of a user.

		Parameters:
		  - ctx: context.Context
		  - userID: int64

		Returns:
		  - int64: Number of removed sessions
		  - error: Storage failures
	*/
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	/*
		DeleteByUserExcept removes every session of a user except the one
		identified by the given fingerprint.

		Parameters:
		  - ctx: context.Context
		  - userID: int64
		  - keepFingerprint: string

		Returns:
		  - int64: Number of removed sessions
		  - error: Storage failures
	*/
	DeleteByUserExcept(ctx context.Context, userID int64, keepFingerprint string) (int64, error)
}

// CodeVerifier is the seam to the SMS controller used by account deletion.
type CodeVerifier interface {
	Verify(ctx context.Context, scene sms.Scene, mobile, supplied string) error
	Consume(ctx context.Context, scene sms.Scene, mobile string) error
}
