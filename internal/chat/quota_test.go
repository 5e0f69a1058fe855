package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxassist/chatd/internal/store"
)

func setupChatStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createChatUser(t *testing.T, st store.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.CreateUser(context.Background(), &store.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Test",
		Role:         store.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func TestQuotaGate_AdmitsFreshUser(t *testing.T) {
	st := setupChatStore(t)
	createChatUser(t, st, "user-1")

	gate := NewQuotaGate(st, 5)
	assert.NoError(t, gate.Check(context.Background(), "user-1"))
}

func TestQuotaGate_RejectsAtLimit(t *testing.T) {
	st := setupChatStore(t)
	ctx := context.Background()
	createChatUser(t, st, "user-1")

	require.NoError(t, st.SetQuotaState(ctx, "user-1", 5, time.Now()))

	gate := NewQuotaGate(st, 5)
	err := gate.Check(ctx, "user-1")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuotaGate_ResetsOnNewDay(t *testing.T) {
	st := setupChatStore(t)
	ctx := context.Background()
	createChatUser(t, st, "user-1")

	// Counter was exhausted yesterday
	yesterday := time.Now().Add(-24 * time.Hour)
	require.NoError(t, st.SetQuotaState(ctx, "user-1", 5, yesterday))

	gate := NewQuotaGate(st, 5)
	assert.NoError(t, gate.Check(ctx, "user-1"))

	// The reset is persisted immediately
	user, err := st.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.DailyMessageCount)
	require.NotNil(t, user.LastMessageDate)
	assert.WithinDuration(t, time.Now(), *user.LastMessageDate, time.Minute)
}

func TestQuotaGate_ResetPersistsEvenWhenStillRejected(t *testing.T) {
	st := setupChatStore(t)
	ctx := context.Background()
	createChatUser(t, st, "user-1")

	gate := NewQuotaGate(st, 0)

	// Limit zero: reset happens, then the gate still rejects
	err := gate.Check(ctx, "user-1")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	user, getErr := st.GetUser(ctx, "user-1")
	require.NoError(t, getErr)
	require.NotNil(t, user.LastMessageDate)
}

func TestQuotaGate_DoesNotResetSameDay(t *testing.T) {
	st := setupChatStore(t)
	ctx := context.Background()
	createChatUser(t, st, "user-1")

	require.NoError(t, st.SetQuotaState(ctx, "user-1", 3, time.Now()))

	gate := NewQuotaGate(st, 5)
	require.NoError(t, gate.Check(ctx, "user-1"))

	user, err := st.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.DailyMessageCount, "same-day count must not reset")
}

func TestQuotaGate_UnknownUser(t *testing.T) {
	st := setupChatStore(t)

	gate := NewQuotaGate(st, 5)
	err := gate.Check(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}
