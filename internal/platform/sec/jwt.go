// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [TokenCodec] seam.
package sec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
)

// # Token Types

const (
	// TokenTypeAccess marks the short-lived bearer token.
	TokenTypeAccess = "access"

	// TokenTypeRefresh marks the long-lived rotation token.
	TokenTypeRefresh = "refresh"

	// MinSecretLength is the minimum byte length of the HMAC signing secret.
	MinSecretLength = 32
)

// Identity is the subject material embedded into an access token.
type Identity struct {
	UserID int64
	UUID   string
	Mobile string
	Role   UserRole
}

// TokenPair is the transient result of issuing credentials. It is returned
// to the client and never persisted as-is; only the refresh fingerprint is
// stored server-side.
type TokenPair struct {
	Access           string `json:"access_token"`
	Refresh          string `json:"refresh_token"`
	AccessTTLSeconds int64  `json:"expires_in"`
}

// Principal is the verified payload of an access token. It is attached to
// the request context by the authentication middleware and surfaced to
// handlers as the caller identity.
type Principal struct {
	UserID    int64     `json:"user_id"`
	UUID      string    `json:"uuid"`
	Mobile    string    `json:"mobile"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// accessClaims is the wire shape of access-token claims.
//
// # Why custom claims?
//
// By embedding the user id, uuid, mobile, and role directly inside the JWT,
// peer services can reconstruct the caller identity WITHOUT querying the
// passport database on every request.
type accessClaims struct {
	jwt.RegisteredClaims

	UserID int64  `json:"uid"`
	UUID   string `json:"uuid"`
	Mobile string `json:"mobile"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
}

// refreshClaims is the wire shape of refresh-token claims. It deliberately
// carries the user id only; everything else is resolved server-side at
// rotation time.
type refreshClaims struct {
	jwt.RegisteredClaims

	UserID int64  `json:"uid"`
	Type   string `json:"typ"`
}

// # Token Codec

// TokenCodec issues and validates the access/refresh token pair using
// HMAC-SHA256 (HS256) compact JWS serialization.
type TokenCodec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenCodec creates a new TokenCodec.
//
// # Parameters
//   - secret: HMAC signing key; must be at least [MinSecretLength] bytes.
//   - issuer: The 'iss' claim stamped into and required from every token.
//   - accessTTL: Lifetime of issued access tokens.
//   - refreshTTL: Lifetime of issued refresh tokens.
func NewTokenCodec(secret string, issuer string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("sec: jwt secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if issuer == "" {
		return nil, errors.New("sec: jwt issuer must not be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("sec: token TTLs must be positive")
	}

	return &TokenCodec{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// RefreshTTL exposes the configured refresh lifetime so the session store
// can persist a matching expiry.
func (codec *TokenCodec) RefreshTTL() time.Duration {
	return codec.refreshTTL
}

/*
Issue produces a freshly signed access/refresh pair for the identity.

Description: Both envelopes are signed independently and carry a random
'jti' nonce, so two issues for the same user at the same clock instant still
yield distinct tokens.

Parameters:
  - identity: Identity (subject material)

Returns:
  - *TokenPair: Signed envelopes plus the access lifetime in seconds
  - error: Signing failures
*/
func (codec *TokenCodec) Issue(identity Identity) (*TokenPair, error) {
	currentTime := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.accessTTL)),
			ID:        uuid.NewString(),
		},
		UserID: identity.UserID,
		UUID:   identity.UUID,
		Mobile: identity.Mobile,
		Role:   string(identity.Role),
		Type:   TokenTypeAccess,
	})

	signedAccess, err := access.SignedString(codec.secret)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.refreshTTL)),
			ID:        uuid.NewString(),
		},
		UserID: identity.UserID,
		Type:   TokenTypeRefresh,
	})

	signedRefresh, err := refresh.SignedString(codec.secret)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		Access:           signedAccess,
		Refresh:          signedRefresh,
		AccessTTLSeconds: int64(codec.accessTTL.Seconds()),
	}, nil
}

/*
VerifyAccess validates an access token end to end.

Description: Checks presence, structure, HMAC signature (constant-time
inside crypto/hmac), issuer, token type, and expiry — in that failure order.

Parameters:
  - token: string (raw compact JWS)

Returns:
  - *Principal: Verified caller identity
  - error: apperr.TokenMissing / TokenInvalid / TokenExpired
*/
func (codec *TokenCodec) VerifyAccess(token string) (*Principal, error) {
	if token == "" {
		return nil, apperr.TokenMissing()
	}

	claims := &accessClaims{}
	if err := codec.parse(token, claims); err != nil {
		return nil, err
	}

	if claims.Type != TokenTypeAccess {
		return nil, apperr.TokenInvalid()
	}

	return &Principal{
		UserID:    claims.UserID,
		UUID:      claims.UUID,
		Mobile:    claims.Mobile,
		Role:      UserRole(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

/*
ParseRefresh validates a refresh token and extracts the subject user id.

Description: Same failure taxonomy as VerifyAccess, with the token type
required to be "refresh". Whether the refresh is still honoured server-side
(fingerprint present in the session store) is the orchestrator's business.

Parameters:
  - token: string (raw compact JWS)

Returns:
  - int64: Subject user id
  - error: apperr.TokenMissing / TokenInvalid / TokenExpired
*/
func (codec *TokenCodec) ParseRefresh(token string) (int64, error) {
	if token == "" {
		return 0, apperr.TokenMissing()
	}

	claims := &refreshClaims{}
	if err := codec.parse(token, claims); err != nil {
		return 0, err
	}

	if claims.Type != TokenTypeRefresh {
		return 0, apperr.TokenInvalid()
	}

	return claims.UserID, nil
}

// parse runs the shared structural, signature, issuer, and expiry checks.
func (codec *TokenCodec) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", t.Header["alg"])
			}
			return codec.secret, nil
		},
		jwt.WithIssuer(codec.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	if err != nil {
		// Structural and authenticity failures take precedence over expiry:
		// an expired token with a bad signature is still a forged token.
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed),
			errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable),
			errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return apperr.TokenInvalid()
		case errors.Is(err, jwt.ErrTokenExpired):
			return apperr.TokenExpired()
		default:
			return apperr.TokenInvalid()
		}
	}

	if !parsed.Valid {
		return apperr.TokenInvalid()
	}

	return nil
}

// # Fingerprinting

// Fingerprint computes the lower-hex SHA-256 digest of a raw token string.
//
// It is the server-side storage key for refresh tokens: deterministic,
// 64 hex characters, and collision-resistant, so the raw secret never
// touches the database.
func Fingerprint(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
