// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// PostgreSQL implementations of the auth repositories.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, unique violations) are classified
// through platform/dberr and mapped to domain-level [apperr.AppError] values
// so callers never see transport details.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, uuid, mobile, password_hash, display_name, role, disabled, created_at, updated_at`

// scanUser hydrates one user row.
func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.UUID,
		&user.Mobile,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.Disabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
Create persists a new user record into the users table.

Description: The database assigns the monotonic ID; the generated value is
scanned back into the entity. A duplicate mobile surfaces as MobileTaken.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist; ID is filled in)

Returns:
  - error: apperr.MobileTaken, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users (uuid, mobile, password_hash, display_name, role, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := repository.pool.QueryRow(context, query,
		user.UUID,
		user.Mobile,
		user.PasswordHash,
		user.DisplayName,
		user.Role,
		user.Disabled,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		if dberr.IsDuplicate(err) {
			return apperr.MobileTaken()
		}
		return apperr.Internal(fmt.Errorf("postgres_user_repo_create_failed: %w", err))
	}

	return nil
}

/*
FindByID retrieves a user record by its numeric primary key.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *User: Hydrated account entity
  - error: apperr.UserNotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id int64) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.UserNotFound()
		}
		return nil, apperr.Internal(fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err))
	}

	return user, nil
}

/*
FindByUUID retrieves a user record by its stable opaque identifier.

Parameters:
  - context: context.Context
  - uuid: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.UserNotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByUUID(context context.Context, uuid string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE uuid = $1 AND deleted_at IS NULL`

	user, err := scanUser(repository.pool.QueryRow(context, query, uuid))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.UserNotFound()
		}
		return nil, apperr.Internal(fmt.Errorf("postgres_user_repo_find_by_uuid_failed: %w", err))
	}

	return user, nil
}

/*
FindByMobile retrieves a user record by its unique mobile number.

Description: The primary credential lookup for both login paths. Callers on
the login path must translate UserNotFound into the enumeration-safe
WrongPassword themselves.

Parameters:
  - context: context.Context
  - mobile: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.UserNotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByMobile(context context.Context, mobile string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE mobile = $1 AND deleted_at IS NULL`

	user, err := scanUser(repository.pool.QueryRow(context, query, mobile))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.UserNotFound()
		}
		return nil, apperr.Internal(fmt.Errorf("postgres_user_repo_find_by_mobile_failed: %w", err))
	}

	return user, nil
}

/*
Update persists changes to a user's mutable profile fields.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: Update failures
*/
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE users
		SET display_name = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	user.UpdatedAt = time.Now()
	_, err := repository.pool.Exec(context, query, user.ID, user.DisplayName, user.UpdatedAt)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_user_repo_update_failed: %w", err))
	}

	return nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: int64
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID int64, newHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	_, err := repository.pool.Exec(context, query, userID, newHash, time.Now())
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_user_repo_update_password_failed: %w", err))
	}

	return nil
}

/*
SetDisabled flips the disabled flag on an account.

Parameters:
  - context: context.Context
  - userID: int64
  - disabled: bool

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) SetDisabled(context context.Context, userID int64, disabled bool) error {
	const query = `
		UPDATE users
		SET disabled = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	_, err := repository.pool.Exec(context, query, userID, disabled, time.Now())
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_user_repo_set_disabled_failed: %w", err))
	}

	return nil
}

/*
SoftDelete marks a user account as deleted using its ID.

Description: Retention-friendly deletion by setting deleted_at. The mobile
number stays reserved until the row is hard-purged.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) SoftDelete(context context.Context, userID int64) error {
	const query = `UPDATE users SET deleted_at = $2 WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_user_repo_soft_delete_failed: %w", err))
	}

	return nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
SaveRefresh inserts a new fingerprint row into user_sessions.

Description: The expiry is computed at the database (now() + ttl) so every
later comparison runs against the same clock. A duplicate fingerprint would
mean the SHA-256 of two distinct tokens collided, so it is treated as an
internal fault rather than a client error.

Parameters:
  - context: context.Context
  - userID: int64
  - fingerprint: string
  - ttl: time.Duration

Returns:
  - error: apperr.Internal or storage failures
*/
func (repository *PostgresSessionRepository) SaveRefresh(context context.Context, userID int64, fingerprint string, ttl time.Duration) error {
	const query = `
		INSERT INTO user_sessions (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, now() + $3 * interval '1 second', now())`

	_, err := repository.pool.Exec(context, query, userID, fingerprint, int64(ttl.Seconds()))
	if err != nil {
		if dberr.IsDuplicate(err) {
			return apperr.Internal(fmt.Errorf("postgres_session_repo_fingerprint_collision: %w", err))
		}
		return apperr.Internal(fmt.Errorf("postgres_session_repo_save_failed: %w", err))
	}

	return nil
}

/*
FindByFingerprint retrieves the session matching the fingerprint.

Parameters:
  - context: context.Context
  - fingerprint: string

Returns:
  - *Session: Hydrated session metadata
  - error: apperr.TokenInvalid when no row matches
*/
func (repository *PostgresSessionRepository) FindByFingerprint(context context.Context, fingerprint string) (*Session, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM user_sessions
		WHERE token_hash = $1`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, fingerprint).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.TokenInvalid()
		}
		return nil, apperr.Internal(fmt.Errorf("postgres_session_repo_find_failed: %w", err))
	}

	return session, nil
}

/*
IsValid reports whether the fingerprint has a non-expired row, evaluated
against the database clock.

Parameters:
  - context: context.Context
  - fingerprint: string

Returns:
  - bool: Validity
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) IsValid(context context.Context, fingerprint string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM user_sessions
			WHERE token_hash = $1 AND expires_at > now()
		)`

	var valid bool
	if err := repository.pool.QueryRow(context, query, fingerprint).Scan(&valid); err != nil {
		return false, apperr.Internal(fmt.Errorf("postgres_session_repo_is_valid_failed: %w", err))
	}

	return valid, nil
}

/*
CountActive counts the user's non-expired sessions.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - int64: Active session count
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) CountActive(context context.Context, userID int64) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM user_sessions
		WHERE user_id = $1 AND expires_at > now()`

	var count int64
	if err := repository.pool.QueryRow(context, query, userID).Scan(&count); err != nil {
		return 0, apperr.Internal(fmt.Errorf("postgres_session_repo_count_active_failed: %w", err))
	}

	return count, nil
}

/*
DeleteByFingerprint removes the matching session row.

Description: Idempotent; a missing row is a successful no-op, which makes
logout and rotation safely retryable.

Parameters:
  - context: context.Context
  - fingerprint: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeleteByFingerprint(context context.Context, fingerprint string) error {
	const query = `DELETE FROM user_sessions WHERE token_hash = $1`

	_, err := repository.pool.Exec(context, query, fingerprint)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_session_repo_delete_failed: %w", err))
	}

	return nil
}

/*
DeleteOldest removes the user's oldest session.

Description: Used to make room when a login would exceed the per-user
session cap.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeleteOldest(context context.Context, userID int64) error {
	const query = `
		DELETE FROM user_sessions
		WHERE id = (
			SELECT id FROM user_sessions
			WHERE user_id = $1
			ORDER BY created_at ASC
			LIMIT 1
		)`

	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_session_repo_delete_oldest_failed: %w", err))
	}

	return nil
}

/*
DeleteByUser removes every session belonging to the user.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - int64: Affected row count
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeleteByUser(context context.Context, userID int64) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE user_id = $1`

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("postgres_session_repo_delete_by_user_failed: %w", err))
	}

	return tag.RowsAffected(), nil
}

/*
SweepExpired permanently removes all sessions past their expiry.

Description: Invoked by the background sweeper; the expiry comparison runs
at the database.

Parameters:
  - context: context.Context

Returns:
  - int64: Affected row count
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) SweepExpired(context context.Context) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE expires_at <= now()`

	tag, err := repository.pool.Exec(context, query)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("postgres_session_repo_sweep_failed: %w", err))
	}

	return tag.RowsAffected(), nil
}
