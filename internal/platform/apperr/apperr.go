// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the
passport service.

It provides a rich error type that bridges the gap between low-level
Domain/Storage errors and the stable numeric codes exposed to RPC consumers.

Architecture:

  - AppError: A struct carrying a stable numeric Code, machine-readable Name,
    and a user-friendly message.
  - Taxonomy: Codes are grouped by range (100 system, 200 input, 300 rate,
    1000 auth, 2000 user, 3000 permission) and must never be renumbered —
    downstream services key their behaviour on them.
  - Mapping: Explicit mapping from AppError to standard HTTP status codes.

Every error that leaves the service layer should be wrapped as an [AppError]
to ensure consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// # Stable Error Codes

// Code is a stable numeric error identifier shared with RPC consumers.
type Code int

// System errors (100-range).
const (
	CodeUnknown            Code = 100
	CodeInternal           Code = 101
	CodeNotImplemented     Code = 102
	CodeServiceUnavailable Code = 103
	CodeTimeout            Code = 104
)

// Input errors (200-range).
const (
	CodeInvalidArgument Code = 200
	CodeInvalidPage     Code = 201
	CodeInvalidPageSize Code = 202
)

// Rate errors (300-range).
const (
	CodeRateLimited   Code = 300
	CodeQuotaExceeded Code = 301
)

// Authentication errors (1000-range).
const (
	CodeUnauthenticated Code = 1000
	CodeTokenMissing    Code = 1001
	CodeTokenInvalid    Code = 1002
	CodeTokenExpired    Code = 1003
	CodeTokenRevoked    Code = 1004
	CodeLoginFailed     Code = 1005
	CodeWrongPassword   Code = 1006
	CodeAccountLocked   Code = 1007
	CodeCaptchaWrong    Code = 1008
	CodeCaptchaExpired  Code = 1009
)

// User errors (2000-range).
const (
	CodeUserNotFound      Code = 2000
	CodeUserDeleted       Code = 2001
	CodeUserAlreadyExists Code = 2002
	CodeMobileTaken       Code = 2003
	CodeUserDisabled      Code = 2004
	CodeUserNotVerified   Code = 2005
)

// Permission errors (3000-range).
const (
	CodePermissionDenied Code = 3000
	CodeAdminRequired    Code = 3001
	CodeOwnerRequired    Code = 3002
)

// # Error Type

// AppError is the canonical error type for the passport API.
//
// It carries the stable numeric code, a machine-readable name, a client-safe
// message, the HTTP status used by the transport layer, and an optional slice
// of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to
// clients to avoid leaking internal implementation details (e.g., SQL
// queries).
type AppError struct {
	// Code is the stable numeric error identifier (e.g. 1006 WrongPassword).
	Code Code `json:"code"`
	// Name is a machine-readable error identifier (e.g. "WRONG_PASSWORD").
	Name string `json:"name"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"msg"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for InvalidArgument responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"msg"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause attaches the underlying error for server-side logging and
// returns a copy so constructors stay side-effect free for callers that
// share the result.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// # System Errors (100-range)

// Internal creates an [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Name:       "INTERNAL",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates an [AppError] for downstream outages
// (cache down, pool exhausted, delivery gateway unreachable).
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       CodeServiceUnavailable,
		Name:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// Timeout creates an [AppError] for deadline overruns.
func Timeout(msg string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Name:       "TIMEOUT",
		Message:    msg,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

// # Input Errors (200-range)

// InvalidArgument creates an [AppError] with optional per-field details.
func InvalidArgument(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeInvalidArgument,
		Name:       "INVALID_ARGUMENT",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidPage creates an [AppError] for an out-of-range page number.
func InvalidPage() *AppError {
	return &AppError{
		Code:       CodeInvalidPage,
		Name:       "INVALID_PAGE",
		Message:    "Page number is out of range",
		HTTPStatus: http.StatusBadRequest,
	}
}

// InvalidPageSize creates an [AppError] for an out-of-range page size.
func InvalidPageSize() *AppError {
	return &AppError{
		Code:       CodeInvalidPageSize,
		Name:       "INVALID_PAGE_SIZE",
		Message:    "Page size is out of range",
		HTTPStatus: http.StatusBadRequest,
	}
}

// # Rate Errors (300-range)

// RateLimited creates an [AppError] advertising the cooldown remainder.
func RateLimited(retryAfterSeconds int64) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Name:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Authentication Errors (1000-range)

// Unauthenticated creates an [AppError] for missing or malformed credentials.
func Unauthenticated(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthenticated,
		Name:       "UNAUTHENTICATED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenMissing creates an [AppError] for an empty token.
func TokenMissing() *AppError {
	return &AppError{
		Code:       CodeTokenMissing,
		Name:       "TOKEN_MISSING",
		Message:    "Token is required",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenInvalid creates an [AppError] for a malformed or forged token.
func TokenInvalid() *AppError {
	return &AppError{
		Code:       CodeTokenInvalid,
		Name:       "TOKEN_INVALID",
		Message:    "Token is invalid",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenExpired creates an [AppError] for a well-formed but expired token.
func TokenExpired() *AppError {
	return &AppError{
		Code:       CodeTokenExpired,
		Name:       "TOKEN_EXPIRED",
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenRevoked creates an [AppError] for a refresh token whose server-side
// record has been rotated away or deleted.
func TokenRevoked() *AppError {
	return &AppError{
		Code:       CodeTokenRevoked,
		Name:       "TOKEN_REVOKED",
		Message:    "Token has been revoked",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// WrongPassword creates an [AppError] for credential mismatch.
//
// # Enumeration Safety
//
// This constructor is deliberately also used when the mobile number is
// unknown, so callers cannot distinguish "no such account" from "bad
// password".
func WrongPassword() *AppError {
	return &AppError{
		Code:       CodeWrongPassword,
		Name:       "WRONG_PASSWORD",
		Message:    "Incorrect mobile number or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AccountLocked creates an [AppError] disclosing the residual lock duration.
func AccountLocked(retryAfterSeconds int64) *AppError {
	return &AppError{
		Code:       CodeAccountLocked,
		Name:       "ACCOUNT_LOCKED",
		Message:    fmt.Sprintf("Account is temporarily locked. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusForbidden,
	}
}

// CaptchaWrong creates an [AppError] disclosing the remaining attempts.
func CaptchaWrong(attemptsLeft int64) *AppError {
	return &AppError{
		Code:       CodeCaptchaWrong,
		Name:       "CAPTCHA_WRONG",
		Message:    fmt.Sprintf("Incorrect verification code. %d attempts left.", attemptsLeft),
		HTTPStatus: http.StatusUnauthorized,
	}
}

// CaptchaExpired creates an [AppError] for a missing or expired SMS code.
func CaptchaExpired() *AppError {
	return &AppError{
		Code:       CodeCaptchaExpired,
		Name:       "CAPTCHA_EXPIRED",
		Message:    "Verification code has expired. Request a new one.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # User Errors (2000-range)

// UserNotFound creates an [AppError] for an unknown account.
func UserNotFound() *AppError {
	return &AppError{
		Code:       CodeUserNotFound,
		Name:       "USER_NOT_FOUND",
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// MobileTaken creates an [AppError] for a duplicate mobile registration.
func MobileTaken() *AppError {
	return &AppError{
		Code:       CodeMobileTaken,
		Name:       "MOBILE_TAKEN",
		Message:    "Mobile number is already registered",
		HTTPStatus: http.StatusConflict,
	}
}

// UserDisabled creates an [AppError] for a disabled account.
func UserDisabled() *AppError {
	return &AppError{
		Code:       CodeUserDisabled,
		Name:       "USER_DISABLED",
		Message:    "Account has been disabled",
		HTTPStatus: http.StatusForbidden,
	}
}

// # Permission Errors (3000-range)

// PermissionDenied creates an [AppError] for insufficient privileges.
func PermissionDenied(msg string) *AppError {
	return &AppError{
		Code:       CodePermissionDenied,
		Name:       "PERMISSION_DENIED",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// AdminRequired creates an [AppError] for admin-only operations.
func AdminRequired() *AppError {
	return &AppError{
		Code:       CodeAdminRequired,
		Name:       "ADMIN_REQUIRED",
		Message:    "Administrator privileges required",
		HTTPStatus: http.StatusForbidden,
	}
}

// OwnerRequired creates an [AppError] for owner-only operations.
func OwnerRequired() *AppError {
	return &AppError{
		Code:       CodeOwnerRequired,
		Name:       "OWNER_REQUIRED",
		Message:    "You may only modify your own resources",
		HTTPStatus: http.StatusForbidden,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries the given stable code.
func HasCode(err error, code Code) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
