// ABOUTME: Authentication HTTP handlers: register, login, logout, password reset
// ABOUTME: Sessions are cookie-backed; reset tokens are emailed JWTs

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxassist/chatd/internal/auth"
	"github.com/vaxassist/chatd/internal/store"
)

// registerRequest is the JSON request body for POST /api/auth/register.
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	BirthYear string `json:"birthYear"`
	Country   string `json:"country"`
	State     string `json:"state"`
}

// loginRequest is the JSON request body for POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the JSON shape for user records.
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	BirthYear string `json:"birthYear,omitempty"`
	Country   string `json:"country,omitempty"`
	State     string `json:"state,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// handleRegister handles POST /api/auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.FirstName == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email, password, and firstName are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now().UTC()
	user := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		BirthYear:    req.BirthYear,
		Country:      req.Country,
		State:        req.State,
		Role:         store.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			s.sendJSONError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Welcome email is best-effort
	go func() {
		mailCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mailer.Send(mailCtx, user.Email, "Welcome",
			"Your account has been created. You can now sign in and start a conversation."); err != nil {
			s.logger.Warn("welcome email failed", "error", err)
		}
	}()

	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Indistinguishable from a wrong password
			s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	session, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sessions.SetCookie(w, session)
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r); err != nil {
		s.logger.Warn("failed to destroy session", "error", err)
	}
	s.sessions.ClearCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleProfile handles GET /api/auth/profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	user, err := s.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleForgotPassword handles POST /api/auth/forgot-password. The response
// is identical whether or not the email exists, to avoid account probing.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		token, tokenErr := s.resetTokens.Generate(user.ID)
		if tokenErr != nil {
			s.logger.Error("failed to generate reset token", "error", tokenErr)
		} else {
			go func() {
				mailCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				body := "Use this token to reset your password: " + token
				if sendErr := s.mailer.Send(mailCtx, user.Email, "Password reset", body); sendErr != nil {
					s.logger.Warn("reset email failed", "error", sendErr)
				}
			}()
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to load user", "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "if the address exists, a reset email has been sent",
	})
}

// handleResetPassword handles POST /api/auth/reset-password.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "token and password are required")
		return
	}

	userID, err := s.resetTokens.Verify(req.Token)
	if err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.store.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		s.logger.Error("failed to update password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// A reset invalidates any live sessions
	if err := s.store.DeleteUserSessions(r.Context(), userID); err != nil {
		s.logger.Warn("failed to revoke sessions after reset", "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func toUserResponse(user *store.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		BirthYear: user.BirthYear,
		Country:   user.Country,
		State:     user.State,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
