package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJWTString(t *testing.T) {
	secret := []byte("test-secret")
	a := NewJWTAuth(secret)

	tokenString, err := a.CreateJWTString(42, true)
	require.NoError(t, err)

	claims := new(Claims)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "smmstore", claims.Issuer)
	assert.True(t, claims.Admin)

	userID, err := ParseUserID(claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestParseUserID(t *testing.T) {
	_, err := ParseUserID("not-a-number")
	require.Error(t, err)
}

func TestIsAdminClaim(t *testing.T) {
	assert.True(t, IsAdminClaim(map[string]any{"adm": true}))
	assert.False(t, IsAdminClaim(map[string]any{"adm": false}))
	assert.False(t, IsAdminClaim(map[string]any{"adm": "true"}))
	assert.False(t, IsAdminClaim(map[string]any{}))
}
