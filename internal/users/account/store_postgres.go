// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/dberr"
	"github.com/taibuivan/yomira-passport/internal/users/auth"
)

// # PostgreSQL Implementation

const accountColumns = "id, uuid, mobile, password_hash, display_name, role, disabled, created_at, updated_at"

// PostgresStore implements [UserStore] and [SessionStore] on pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a [PostgresStore] on the shared pool.
func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanAccount(row interface{ Scan(dest ...any) error }) (*auth.User, error) {
	var user auth.User
	err := row.Scan(
		&user.ID, &user.UUID, &user.Mobile, &user.PasswordHash,
		&user.DisplayName, &user.Role, &user.Disabled,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID implements [UserStore].
func (store *PostgresStore) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	row := store.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id = $1 AND deleted_at IS NULL", id)

	user, err := scanAccount(row)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.UserNotFound()
		}
		return nil, apperr.Internal(fmt.Errorf("postgres_account_find_failed: %w", err))
	}
	return user, nil
}

// FindByUUID implements [UserStore].
func (store *PostgresStore) FindByUUID(ctx context.Context, uuid string) (*auth.User, error) {
	row := store.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE uuid = $1 AND deleted_at IS NULL", uuid)

	user, err := scanAccount(row)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.UserNotFound()
		}
		return nil, apperr.Internal(fmt.Errorf("postgres_account_find_failed: %w", err))
	}
	return user, nil
}

// Update implements [UserStore]. Only the profile fields are mutable here.
func (store *PostgresStore) Update(ctx context.Context, user *auth.User) error {
	_, err := store.pool.Exec(ctx,
		"UPDATE users SET display_name = $1, updated_at = now() WHERE id = $2 AND deleted_at IS NULL",
		user.DisplayName, user.ID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_account_update_failed: %w", err))
	}
	return nil
}

// UpdatePassword implements [UserStore].
func (store *PostgresStore) UpdatePassword(ctx context.Context, userID int64, newHash string) error {
	_, err := store.pool.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2 AND deleted_at IS NULL",
		newHash, userID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_account_password_update_failed: %w", err))
	}
	return nil
}

// SetDisabled implements [UserStore].
func (store *PostgresStore) SetDisabled(ctx context.Context, userID int64, disabled bool) error {
	_, err := store.pool.Exec(ctx,
		"UPDATE users SET disabled = $1, updated_at = now() WHERE id = $2 AND deleted_at IS NULL",
		disabled, userID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_account_disable_failed: %w", err))
	}
	return nil
}

// SoftDelete implements [UserStore]. Idempotent; a second delete matches no
// row and succeeds.
func (store *PostgresStore) SoftDelete(ctx context.Context, userID int64) error {
	_, err := store.pool.Exec(ctx,
		"UPDATE users SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL",
		userID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres_account_delete_failed: %w", err))
	}
	return nil
}

// List implements [UserStore].
func (store *PostgresStore) List(ctx context.Context, limit, offset int) ([]auth.User, error) {
	rows, err := store.pool.Query(ctx,
		"SELECT "+accountColumns+" FROM users WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("postgres_account_list_failed: %w", err))
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		user, err := scanAccount(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("postgres_account_scan_failed: %w", err))
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Errorf("postgres_account_list_failed: %w", err))
	}
	return users, nil
}

// Count implements [UserStore].
func (store *PostgresStore) Count(ctx context.Context) (int64, error) {
	var total int64
	err := store.pool.QueryRow(ctx,
		"SELECT count(*) FROM users WHERE deleted_at IS NULL").Scan(&total)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("postgres_account_count_failed: %w", err))
	}
	return total, nil
}

// DeleteByUser implements [SessionStore].
func (store *PostgresStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := store.pool.Exec(ctx,
		"DELETE FROM user_sessions WHERE user_id = $1", userID)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("postgres_session_delete_failed: %w", err))
	}
	return tag.RowsAffected(), nil
}

// DeleteByUserExcept implements [SessionStore].
func (store *PostgresStore) DeleteByUserExcept(ctx context.Context, userID int64, keepFingerprint string) (int64, error) {
	tag, err := store.pool.Exec(ctx,
		"DELETE FROM user_sessions WHERE user_id = $1 AND token_hash <> $2",
		userID, keepFingerprint)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("postgres_session_delete_failed: %w", err))
	}
	return tag.RowsAffected(), nil
}
