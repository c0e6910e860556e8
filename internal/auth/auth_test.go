package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierDisabledTrustsDeclaredRole(t *testing.T) {
	v := NewVerifier("")
	assert.False(t, v.Enabled())
	assert.True(t, v.IsAdmin(true, ""))
	assert.False(t, v.IsAdmin(false, ""))
}

func TestVerifierIssueAndVerify(t *testing.T) {
	v := NewVerifier("s3cret")
	token, err := v.Issue("admin@example.com", time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Subject)
	assert.True(t, v.IsAdmin(true, token))
	assert.False(t, v.IsAdmin(true, "garbage"))
	assert.False(t, v.IsAdmin(true, ""))
}

func TestVerifierRejectsWrongSecretExpiryAndRole(t *testing.T) {
	v := NewVerifier("s3cret")

	other, err := NewVerifier("other").Issue("x", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := v.Issue("x", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	guest, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: "guest"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Verify(guest)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
