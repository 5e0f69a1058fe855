// ABOUTME: Tests for password hashing, reset tokens, and identity context
// ABOUTME: Covers bcrypt round-trips, JWT claims, and context propagation

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse battery staple"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrWrongPassword)
}

func TestResetTokens_RoundTrip(t *testing.T) {
	tokens := NewResetTokens([]byte("test-secret"), time.Hour)

	token, err := tokens.Generate("user-1")
	require.NoError(t, err)

	userID, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestResetTokens_Expired(t *testing.T) {
	tokens := NewResetTokens([]byte("test-secret"), -time.Hour)

	token, err := tokens.Generate("user-1")
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestResetTokens_WrongSecret(t *testing.T) {
	issuer := NewResetTokens([]byte("secret-a"), time.Hour)
	verifier := NewResetTokens([]byte("secret-b"), time.Hour)

	token, err := issuer.Generate("user-1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetTokens_Garbage(t *testing.T) {
	tokens := NewResetTokens([]byte("test-secret"), time.Hour)

	_, err := tokens.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	id := &Identity{UserID: "user-1", Email: "alice@example.com", Role: "admin"}
	ctx = WithIdentity(ctx, id)

	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.IsAdmin())
}

func TestMustFromContext_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})
}

func TestIdentity_IsAdmin(t *testing.T) {
	assert.False(t, (&Identity{Role: "user"}).IsAdmin())
	assert.True(t, (&Identity{Role: "admin"}).IsAdmin())
}
