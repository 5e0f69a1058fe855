// ABOUTME: User management HTTP handlers: admin listing and self-service updates
// ABOUTME: Name changes, password changes with old-password check, account deletion

package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/vaxassist/chatd/internal/auth"
	"github.com/vaxassist/chatd/internal/store"
)

// handleListUsers handles GET /api/users (admin).
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, toUserResponse(user))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleUpdateMe handles PATCH /api/users/me.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FirstName == "" {
		s.sendJSONError(w, http.StatusBadRequest, "firstName is required")
		return
	}

	if err := s.store.UpdateUserName(r.Context(), id.UserID, req.FirstName, req.LastName); err != nil {
		s.logger.Error("failed to update user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := s.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleChangePassword handles POST /api/users/me/password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		s.sendJSONError(w, http.StatusBadRequest, "oldPassword and newPassword are required")
		return
	}

	user, err := s.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.OldPassword); err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "wrong password")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.store.UpdateUserPassword(r.Context(), id.UserID, hash); err != nil {
		s.logger.Error("failed to update password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// handleDeleteMe handles DELETE /api/users/me. Conversations, messages, and
// sessions cascade with the account row.
func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	if err := s.store.DeleteUser(r.Context(), id.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("failed to delete user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sessions.ClearCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "account deleted"})
}

// handleInviteFriend handles POST /api/users/invite. Sends an invitation
// email on the current user's behalf.
func (s *Server) handleInviteFriend(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := s.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Invitation email is best-effort
	to := req.Email
	subject := "Invitation from " + user.FirstName
	body := user.FirstName + " has invited you to sign up and ask questions about vaccines and immunization schedules."
	go func() {
		mailCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mailer.Send(mailCtx, to, subject, body); err != nil {
			s.logger.Warn("invitation email failed", "error", err)
		}
	}()

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "invitation sent"})
}

// handleAdminResetPassword handles POST /api/admin/users/{id}/reset-password.
// Issues a random password, revokes the user's sessions, and mails them the
// new credential.
func (s *Server) handleAdminResetPassword(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	password, err := randomPassword()
	if err != nil {
		s.logger.Error("failed to generate password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.store.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		s.logger.Error("failed to update password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := s.store.DeleteUserSessions(r.Context(), userID); err != nil {
		s.logger.Error("failed to revoke sessions", "error", err)
	}

	go func() {
		mailCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		body := "An administrator has reset your password. Your new password is: " + password
		if err := s.mailer.Send(mailCtx, user.Email, "Password reset", body); err != nil {
			s.logger.Warn("password email failed", "error", err)
		}
	}()

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}

// handleAdminDeleteUser handles DELETE /api/admin/users/{id}. Conversations,
// messages, and sessions cascade with the account row.
func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("failed to delete user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "account deleted"})
}

// randomPassword generates a throwaway credential for admin-driven resets.
func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
