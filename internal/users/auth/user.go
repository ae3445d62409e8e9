// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the mobile-number identity and session layer.

It owns user registration, both login paths (password and one-time SMS
code), the twin-token refresh protocol with rotation, credential reset,
and the login-attempt limiter.

Architecture:

  - Service: Orchestrates the flows over narrow collaborator seams.
  - Repository: Abstracted interfaces for Postgres (users, sessions).
  - LoginLimiter: Sliding failure counter in the cache.
  - Security: bcrypt hashing and the HS256 token codec from platform/sec.

Refresh tokens are never stored raw; only their SHA-256 fingerprint ever
touches the database.
*/
package auth

import (
	"time"

	"github.com/taibuivan/yomira-passport/internal/platform/sec"
)

// # Domain Entities

// User represents a registered account keyed by its mobile number.
type User struct {
	ID           int64        `json:"id"`
	UUID         string       `json:"uuid"`
	Mobile       string       `json:"mobile"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name"`
	Role         sec.UserRole `json:"role"`
	Disabled     bool         `json:"disabled"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Identity converts the user into the token codec's subject material.
func (user *User) Identity() sec.Identity {
	return sec.Identity{
		UserID: user.ID,
		UUID:   user.UUID,
		Mobile: user.Mobile,
		Role:   user.Role,
	}
}

// Session represents one server-side refresh-token record. TokenHash holds
// the fingerprint of the refresh secret, never the secret itself.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// # Field Identifiers

// Global field names for validation and payload mapping in the auth domain.
const (
	FieldMobile      = "mobile"
	FieldPassword    = "password"
	FieldNewPassword = "new_password"
	FieldCode        = "code"
	FieldDisplayName = "display_name"
	FieldScene       = "scene"
	FieldRefresh     = "refresh_token"
	FieldAccess      = "access_token"
)
