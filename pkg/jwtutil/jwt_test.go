package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m, err := NewManager("secret", time.Hour)
	require.NoError(t, err)

	token, err := m.Generate("user-1", "cust-1", "admin")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "cust-1", claims.CustomerID)
	assert.Equal(t, "admin", claims.Role)
	require.NotNil(t, claims.ExpiresAt)
}

func TestZeroTTLDoesNotExpire(t *testing.T) {
	m, err := NewManager("secret", 0)
	require.NoError(t, err)

	token, err := m.Generate("user-1", "cust-1", "agent")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestValidateRejects(t *testing.T) {
	m, err := NewManager("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewManager("other", time.Hour)
	require.NoError(t, err)

	foreign, err := other.Generate("user-1", "cust-1", "admin")
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-jwt",
		"wrong key": foreign,
		"expired":   expiredToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(" ", time.Hour)
	assert.Error(t, err)
}
