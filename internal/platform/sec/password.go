// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"unicode"
)

// # Password Policy

// PasswordPolicy describes the complexity rules enforced on plain-text
// passwords before hashing.
//
// All fields are loaded from configuration so deployments can tighten or
// relax the policy without a code change.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy returns the policy used when configuration is silent.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		MaxLength:        64,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}
}

/*
Violations checks a plain-text password against the policy.

Description: Collects every broken rule rather than stopping at the first,
so the client can present the full checklist at once.

Parameters:
  - password: string

Returns:
  - []string: Human-readable rule violations; empty when the password passes
*/
func (policy PasswordPolicy) Violations(password string) []string {
	var violations []string

	length := len([]rune(password))
	if length < policy.MinLength {
		violations = append(violations, fmt.Sprintf("Must be at least %d characters", policy.MinLength))
	}
	if policy.MaxLength > 0 && length > policy.MaxLength {
		violations = append(violations, fmt.Sprintf("Must be at most %d characters", policy.MaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		violations = append(violations, "Must contain an uppercase letter")
	}
	if policy.RequireLowercase && !hasLower {
		violations = append(violations, "Must contain a lowercase letter")
	}
	if policy.RequireDigit && !hasDigit {
		violations = append(violations, "Must contain a digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		violations = append(violations, "Must contain a special character")
	}

	return violations
}
