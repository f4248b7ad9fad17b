package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rajatsgill7/medicalledger/pkg/config"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator issues and validates JWT access tokens
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
	tokenTTL  time.Duration
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(cfg *config.JWTConfig) *TokenValidator {
	ttl := time.Duration(cfg.AccessTokenTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenValidator{
		jwtSecret: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		tokenTTL:  ttl,
	}
}

// IssueToken generates a new signed access token for the user
func (tv *TokenValidator) IssueToken(user *types.User) (*types.AuthToken, error) {
	now := time.Now()
	expirationTime := now.Add(tv.tokenTTL)

	claims := &JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tv.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &types.AuthToken{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tv.tokenTTL.Seconds()),
		IssuedAt:    now,
	}, nil
}

// ValidateToken validates a token string and returns its claims
func (tv *TokenValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}
