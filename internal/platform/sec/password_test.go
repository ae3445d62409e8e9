// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/sec"
)

/*
TestPasswordPolicy_Violations checks that every broken rule is reported,
not just the first one.
*/
func TestPasswordPolicy_Violations(t *testing.T) {
	policy := sec.DefaultPasswordPolicy()

	tests := []struct {
		name      string
		password  string
		wantCount int
	}{
		{"strong_password", "Aa1!aaaa", 0},
		{"too_short_and_weak", "abc", 4}, // length, uppercase, digit, special
		{"missing_special_only", "Abcdefg1", 1},
		{"missing_digit_only", "Abcdefg!", 1},
		{"all_lowercase", "abcdefgh", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, policy.Violations(tt.password), tt.wantCount)
		})
	}
}

/*
TestPasswordPolicy_MaxLength checks the upper bound and that a zero
MaxLength disables the check.
*/
func TestPasswordPolicy_MaxLength(t *testing.T) {
	policy := sec.PasswordPolicy{MinLength: 1, MaxLength: 4}

	assert.Empty(t, policy.Violations("abcd"))
	assert.Len(t, policy.Violations("abcde"), 1)

	unbounded := sec.PasswordPolicy{MinLength: 1, MaxLength: 0}
	assert.Empty(t, unbounded.Violations("averyveryverylongpassword"))
}

/*
TestHashPassword_RoundTrip checks hash and compare behaviour, including the
salted property that two hashes of the same input differ.
*/
func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := sec.HashPassword("S3cret!pass")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, sec.CheckPasswordHash("S3cret!pass", hash))
	assert.False(t, sec.CheckPasswordHash("wrong-pass", hash))

	secondHash, err := sec.HashPassword("S3cret!pass")
	require.NoError(t, err)
	assert.NotEqual(t, hash, secondHash)
}

/*
TestUserRole_Hierarchy checks the role ordering used by the authorization
middleware.
*/
func TestUserRole_Hierarchy(t *testing.T) {
	assert.True(t, sec.RoleSuperAdmin.AtLeast(sec.RoleAdmin))
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleUser))
	assert.True(t, sec.RoleUser.AtLeast(sec.RoleUser))
	assert.False(t, sec.RoleUser.AtLeast(sec.RoleAdmin))
	assert.False(t, sec.RoleAdmin.AtLeast(sec.RoleSuperAdmin))

	assert.True(t, sec.RoleUser.Valid())
	assert.False(t, sec.UserRole("ghost").Valid())
}
