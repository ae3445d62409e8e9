// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		Create persists a brand-new user account and fills in its ID.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.MobileTaken on a duplicate mobile, or storage failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID returns the account with the given numeric ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.UserNotFound or storage failures
	*/
	FindByID(context context.Context, id int64) (*User, error)

	/*
		FindByUUID returns the account with the given stable UUID.

		Parameters:
		  - context: context.Context
		  - uuid: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.UserNotFound or storage failures
	*/
	FindByUUID(context context.Context, uuid string) (*User, error)

	/*
		FindByMobile returns the account with the given mobile number.

		Parameters:
		  - context: context.Context
		  - mobile: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.UserNotFound or storage failures
	*/
	FindByMobile(context context.Context, mobile string) (*User, error)

	/*
		Update persists changes to mutable profile fields.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Update(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID int64, newHash string) error

	/*
		SetDisabled flips the disabled flag on an account.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - disabled: bool

		Returns:
		  - error: Persistence failures
	*/
	SetDisabled(context context.Context, userID int64, disabled bool) error

	/*
		SoftDelete marks the account as deleted without removing the row.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - error: Persistence failures
	*/
	SoftDelete(context context.Context, userID int64) error
}

// # Session Data Access

// SessionRepository defines the data access contract for refresh-token
// fingerprints. Every expiry comparison runs against the database clock so
// application and database nodes need not agree on the time.
type SessionRepository interface {

	/*
		SaveRefresh inserts a new fingerprint row for the user.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - fingerprint: string (lower-hex SHA-256 of the refresh token)
		  - ttl: time.Duration

		Returns:
		  - error: apperr.Internal on a duplicate fingerprint, or storage failures
	*/
	SaveRefresh(context context.Context, userID int64, fingerprint string, ttl time.Duration) error

	/*
		FindByFingerprint returns the session matching the fingerprint.

		Parameters:
		  - context: context.Context
		  - fingerprint: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.TokenInvalid when no row matches
	*/
	FindByFingerprint(context context.Context, fingerprint string) (*Session, error)

	/*
		IsValid reports whether a row exists with expires_at still in the
		future, evaluated at the database.

		Parameters:
		  - context: context.Context
		  - fingerprint: string

		Returns:
		  - bool: Validity
		  - error: Storage failures
	*/
	IsValid(context context.Context, fingerprint string) (bool, error)

	/*
		CountActive returns the number of non-expired sessions for a user.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - int64: Active session count
		  - error: Storage failures
	*/
	CountActive(context context.Context, userID int64) (int64, error)

	/*
		DeleteByFingerprint removes the matching row. Missing rows are a
		successful no-op.

		Parameters:
		  - context: context.Context
		  - fingerprint: string

		Returns:
		  - error: Storage failures
	*/
	DeleteByFingerprint(context context.Context, fingerprint string) error

	/*
		DeleteOldest removes the user's oldest session, making room under the
		per-user session cap.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - error: Storage failures
	*/
	DeleteOldest(context context.Context, userID int64) error

	/*
		DeleteByUser removes every session belonging to the user.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - int64: Affected row count
		  - error: Storage failures
	*/
	DeleteByUser(context context.Context, userID int64) (int64, error)

	/*
		SweepExpired removes every session with expires_at in the past.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Affected row count
		  - error: Storage failures
	*/
	SweepExpired(context context.Context) (int64, error)
}
