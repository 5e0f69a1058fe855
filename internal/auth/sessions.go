// ABOUTME: Cookie-backed session management for chatd
// ABOUTME: Creates, resolves, and revokes store-persisted sessions

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaxassist/chatd/internal/store"
)

// SessionCookie is the name of the session cookie
const SessionCookie = "chatd_session"

// ErrNoSession is returned when a request carries no valid session
var ErrNoSession = errors.New("no valid session")

// SessionManager issues and resolves cookie-backed sessions.
type SessionManager struct {
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionManager creates a session manager with the given TTL.
func NewSessionManager(st store.Store, ttl time.Duration) *SessionManager {
	return &SessionManager{
		store:  st,
		ttl:    ttl,
		logger: slog.Default().With("component", "sessions"),
	}
}

// Create starts a new session for the user. Existing sessions for the user
// are revoked first so a fresh login invalidates stolen cookies.
func (m *SessionManager) Create(ctx context.Context, userID string) (*store.Session, error) {
	if err := m.store.DeleteUserSessions(ctx, userID); err != nil {
		return nil, fmt.Errorf("revoking prior sessions: %w", err)
	}

	now := time.Now().UTC()
	session := &store.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	m.logger.Debug("session created", "user_id", userID)
	return session, nil
}

// Resolve returns the authenticated identity for a request, or ErrNoSession.
func (m *SessionManager) Resolve(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	session, err := m.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	user, err := m.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("loading session user: %w", err)
	}

	return &Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, nil
}

// Destroy revokes the session attached to the request, if any.
func (m *SessionManager) Destroy(r *http.Request) error {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return m.store.DeleteSession(r.Context(), cookie.Value)
}

// SetCookie writes the session cookie on a response.
func (m *SessionManager) SetCookie(w http.ResponseWriter, session *store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on a response.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
