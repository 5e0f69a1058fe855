// ABOUTME: Tests for cookie-backed session management and HTTP middleware
// ABOUTME: Covers login regeneration, expiry, and 401/403 enforcement

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxassist/chatd/internal/store"
)

func setupAuthStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createAuthUser(t *testing.T, st store.Store, id, role string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.CreateUser(context.Background(), &store.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Test",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func requestWithSession(sessionID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if sessionID != "" {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionID})
	}
	return r
}

func TestSessionManager_CreateAndResolve(t *testing.T) {
	st := setupAuthStore(t)
	createAuthUser(t, st, "user-1", store.RoleUser)

	sessions := NewSessionManager(st, time.Hour)
	session, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	id, err := sessions.Resolve(requestWithSession(session.ID))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "user-1@example.com", id.Email)
	assert.False(t, id.IsAdmin())
}

func TestSessionManager_NoCookie(t *testing.T) {
	st := setupAuthStore(t)
	sessions := NewSessionManager(st, time.Hour)

	_, err := sessions.Resolve(requestWithSession(""))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionManager_UnknownSession(t *testing.T) {
	st := setupAuthStore(t)
	sessions := NewSessionManager(st, time.Hour)

	_, err := sessions.Resolve(requestWithSession("bogus"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionManager_LoginRevokesPriorSessions(t *testing.T) {
	st := setupAuthStore(t)
	createAuthUser(t, st, "user-1", store.RoleUser)

	sessions := NewSessionManager(st, time.Hour)
	first, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)
	second, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = sessions.Resolve(requestWithSession(first.ID))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = sessions.Resolve(requestWithSession(second.ID))
	assert.NoError(t, err)
}

func TestSessionManager_Destroy(t *testing.T) {
	st := setupAuthStore(t)
	createAuthUser(t, st, "user-1", store.RoleUser)

	sessions := NewSessionManager(st, time.Hour)
	session, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	require.NoError(t, sessions.Destroy(requestWithSession(session.ID)))

	_, err = sessions.Resolve(requestWithSession(session.ID))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRequireUser(t *testing.T) {
	st := setupAuthStore(t)
	createAuthUser(t, st, "user-1", store.RoleUser)

	sessions := NewSessionManager(st, time.Hour)
	session, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	var sawIdentity *Identity
	handler := RequireUser(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Authenticated request passes through with identity
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(session.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sawIdentity)
	assert.Equal(t, "user-1", sawIdentity.UserID)

	// Unauthenticated request is rejected with a JSON body
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	st := setupAuthStore(t)
	createAuthUser(t, st, "admin-1", store.RoleAdmin)
	createAuthUser(t, st, "user-1", store.RoleUser)

	sessions := NewSessionManager(st, time.Hour)
	handler := RequireUser(sessions)(RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	adminSession, err := sessions.Create(context.Background(), "admin-1")
	require.NoError(t, err)
	userSession, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(adminSession.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(userSession.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"admin role required"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
