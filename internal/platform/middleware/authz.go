// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/constants"
	"github.com/taibuivan/yomira-passport/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-passport/internal/platform/sec"
)

// # Token Verification

// TokenVerifier validates an access token and returns the caller identity.
// Implemented by [sec.TokenCodec].
type TokenVerifier interface {
	VerifyAccess(token string) (*sec.Principal, error)
}

/*
Authenticate extracts and verifies the bearer token when one is present.

It is lenient: anonymous requests pass through without a principal, but a
malformed or invalid credential is rejected immediately. Handlers that need
a guaranteed identity must additionally be wrapped in [RequireAuth].

Header parsing is strict. The scheme must be exactly "Bearer" followed by a
single space and a non-empty token. Each malformed variant is logged under
its own event name so operators can tell client bugs apart.
*/
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			logger := ctxutil.GetLogger(request.Context())
			header := request.Header.Get(constants.HeaderAuthorization)

			// 1. Anonymous request: no credential, nothing to verify
			if header == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Parse the header strictly
			token, parseErr := parseBearer(logger, header)
			if parseErr != nil {
				writeError(writer, parseErr)
				return
			}

			// 3. Verify the signature and claims
			principal, err := verifier.VerifyAccess(token)
			if err != nil {
				appError := apperr.As(err)
				if appError == nil {
					appError = apperr.Internal(err)
				}

				logger.Warn("auth_token_rejected",
					slog.Int("code", int(appError.Code)),
					slog.String("reason", appError.Name),
				)
				writeError(writer, appError)
				return
			}

			// 4. Attach the verified identity for downstream handlers
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that carry no verified principal.
// It must be mounted after [Authenticate].
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if ctxutil.GetPrincipal(request.Context()) == nil {
				writeError(writer, apperr.TokenMissing())
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// RequireRole rejects authenticated callers below the required role level.
// It must be mounted after [Authenticate].
func RequireRole(required sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			principal := ctxutil.GetPrincipal(request.Context())
			if principal == nil {
				writeError(writer, apperr.TokenMissing())
				return
			}

			if !principal.Role.AtLeast(required) {
				ctxutil.GetLogger(request.Context()).Warn("authz_role_denied",
					slog.Int64("user_id", principal.UserID),
					slog.String("role", string(principal.Role)),
					slog.String("required", string(required)),
				)
				writeError(writer, apperr.AdminRequired())
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// parseBearer extracts the raw token from a non-empty Authorization header.
// Every malformed shape maps to the same client-facing error, but each is
// logged distinctly.
func parseBearer(logger *slog.Logger, header string) (string, *apperr.AppError) {

	// Scheme without any token, e.g. "Bearer" alone
	if header == strings.TrimSuffix(constants.BearerPrefix, " ") {
		logger.Warn("auth_header_token_absent")
		return "", apperr.Unauthenticated("Authorization header is malformed")
	}

	// Wrong scheme, e.g. "Basic dXNlcjpwYXNz" or a bare token
	if !strings.HasPrefix(header, constants.BearerPrefix) {
		logger.Warn("auth_header_scheme_mismatch")
		return "", apperr.Unauthenticated("Authorization header is malformed")
	}

	// Correct scheme but blank token, e.g. "Bearer " or "Bearer   "
	token := strings.TrimSpace(strings.TrimPrefix(header, constants.BearerPrefix))
	if token == "" {
		logger.Warn("auth_header_token_empty")
		return "", apperr.Unauthenticated("Authorization header is malformed")
	}

	return token, nil
}
