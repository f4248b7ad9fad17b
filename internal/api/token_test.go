package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajatsgill7/medicalledger/pkg/config"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

func testUser() *types.User {
	return &types.User{
		ID:       "user-1",
		Username: "pat",
		Role:     types.RolePatient,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tv := NewTokenValidator(&config.JWTConfig{
		SecretKey:      "test-secret",
		AccessTokenTTL: 3600,
		Issuer:         "medicalledger-test",
	})

	token, err := tv.IssueToken(testUser())
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims, err := tv.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "pat", claims.Username)
	assert.Equal(t, string(types.RolePatient), claims.Role)
	assert.Equal(t, "medicalledger-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIDsAreUnique(t *testing.T) {
	tv := NewTokenValidator(&config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 3600})

	first, err := tv.IssueToken(testUser())
	require.NoError(t, err)
	second, err := tv.IssueToken(testUser())
	require.NoError(t, err)

	firstClaims, err := tv.ValidateToken(first.AccessToken)
	require.NoError(t, err)
	secondClaims, err := tv.ValidateToken(second.AccessToken)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer := NewTokenValidator(&config.JWTConfig{SecretKey: "secret-a", AccessTokenTTL: 3600})
	validator := NewTokenValidator(&config.JWTConfig{SecretKey: "secret-b", AccessTokenTTL: 3600})

	token, err := issuer.IssueToken(testUser())
	require.NoError(t, err)

	_, err = validator.ValidateToken(token.AccessToken)
	assert.Error(t, err)
}

func TestTokenTamperingRejected(t *testing.T) {
	tv := NewTokenValidator(&config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 3600})

	token, err := tv.IssueToken(testUser())
	require.NoError(t, err)

	tampered := token.AccessToken[:len(token.AccessToken)-2] + "xx"
	_, err = tv.ValidateToken(tampered)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	tv := &TokenValidator{
		jwtSecret: []byte("test-secret"),
		issuer:    "medicalledger-test",
		tokenTTL:  -time.Minute,
	}

	token, err := tv.IssueToken(testUser())
	require.NoError(t, err)

	_, err = tv.ValidateToken(token.AccessToken)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	tv := NewTokenValidator(&config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 3600})

	_, err := tv.ValidateToken("not.a.token")
	assert.Error(t, err)
}
