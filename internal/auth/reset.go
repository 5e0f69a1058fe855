// ABOUTME: Password reset tokens using HS256-signed JWTs
// ABOUTME: Short-lived single-purpose tokens carried in the reset email link

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// resetPurpose distinguishes reset tokens from any future token kinds
const resetPurpose = "password_reset"

// ResetTokens issues and verifies password reset tokens.
type ResetTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewResetTokens creates a token issuer with the given secret and lifetime.
func NewResetTokens(secret []byte, ttl time.Duration) *ResetTokens {
	return &ResetTokens{secret: secret, ttl: ttl}
}

// Generate creates a reset token for the given user ID.
func (t *ResetTokens) Generate(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"purpose": resetPurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a reset token and returns the user ID from the "sub" claim.
func (t *ResetTokens) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	if purpose, _ := claims["purpose"].(string); purpose != resetPurpose {
		return "", fmt.Errorf("%w: purpose", ErrMissingClaim)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
