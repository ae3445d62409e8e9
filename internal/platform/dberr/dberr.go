// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes this service cares about.
const (
	sqlstateUniqueViolation = "23505"
)

var (
	// ErrNoRows signals that a queried row does not exist. Stores translate
	// it into the domain-specific error (UserNotFound, TokenRevoked).
	ErrNoRows = errors.New("dberr: no rows")

	// ErrDuplicate signals a unique constraint violation. Stores translate
	// it into the domain-specific conflict (MobileTaken).
	ErrDuplicate = errors.New("dberr: duplicate key")
)

// Classify inspects a raw pgx error and maps it onto one of the package
// sentinels. Unrecognized errors pass through unchanged so callers can wrap
// them as internal failures.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}

	var pgError *pgconn.PgError
	if errors.As(err, &pgError) && pgError.Code == sqlstateUniqueViolation {
		return ErrDuplicate
	}

	return err
}

// IsNoRows reports whether err means the row does not exist.
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgError *pgconn.PgError
	return errors.As(err, &pgError) && pgError.Code == sqlstateUniqueViolation
}
