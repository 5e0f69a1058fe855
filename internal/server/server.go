// ABOUTME: HTTP server wiring for chatd's API surface
// ABOUTME: Routes, middleware stacking, and graceful shutdown lifecycle

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaxassist/chatd/internal/auth"
	"github.com/vaxassist/chatd/internal/chat"
	"github.com/vaxassist/chatd/internal/config"
	"github.com/vaxassist/chatd/internal/mail"
	"github.com/vaxassist/chatd/internal/store"
)

// Server hosts chatd's HTTP API.
type Server struct {
	cfg         *config.Config
	store       store.Store
	sessions    *auth.SessionManager
	resetTokens *auth.ResetTokens
	relay       *chat.Relay
	mailer      mail.Mailer
	httpServer  *http.Server
	logger      *slog.Logger
}

// New assembles a server from its collaborators.
func New(cfg *config.Config, st store.Store, sessions *auth.SessionManager, resetTokens *auth.ResetTokens, relay *chat.Relay, mailer mail.Mailer) *Server {
	s := &Server{
		cfg:         cfg,
		store:       st,
		sessions:    sessions,
		resetTokens: resetTokens,
		relay:       relay,
		mailer:      mailer,
		logger:      slog.Default().With("component", "server"),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// routes builds the method-pattern mux for the full API surface.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	user := auth.RequireUser(s.sessions)
	admin := func(h http.HandlerFunc) http.Handler {
		return user(auth.RequireAdmin()(h))
	}

	mux.HandleFunc("GET /health", s.handleHealth)

	// Auth
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/profile", user(http.HandlerFunc(s.handleProfile)))
	mux.HandleFunc("POST /api/auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", s.handleResetPassword)

	// Chat
	mux.Handle("POST /api/chat/send", user(http.HandlerFunc(s.handleSend)))
	mux.Handle("POST /api/chat/start", user(http.HandlerFunc(s.handleStartConversation)))
	mux.Handle("GET /api/chat/conversations", user(http.HandlerFunc(s.handleListConversations)))
	mux.Handle("GET /api/chat/conversations/{id}/messages", user(http.HandlerFunc(s.handleConversationMessages)))
	mux.Handle("DELETE /api/chat/conversations/{id}", user(http.HandlerFunc(s.handleDeleteConversation)))

	// Users
	mux.Handle("GET /api/users", admin(s.handleListUsers))
	mux.Handle("PATCH /api/users/me", user(http.HandlerFunc(s.handleUpdateMe)))
	mux.Handle("POST /api/users/me/password", user(http.HandlerFunc(s.handleChangePassword)))
	mux.Handle("DELETE /api/users/me", user(http.HandlerFunc(s.handleDeleteMe)))
	mux.Handle("POST /api/users/invite", user(http.HandlerFunc(s.handleInviteFriend)))
	mux.Handle("POST /api/admin/users/{id}/reset-password", admin(s.handleAdminResetPassword))
	mux.Handle("DELETE /api/admin/users/{id}", admin(s.handleAdminDeleteUser))
	mux.Handle("GET /api/admin/users/{id}/conversations", admin(s.handleAdminUserConversations))
	mux.Handle("GET /api/admin/conversations/{id}/messages", admin(s.handleAdminConversationMessages))
	mux.Handle("POST /api/admin/dataset/jsonl", admin(s.handleExportDataset))

	// Reports
	mux.Handle("POST /api/reports", user(http.HandlerFunc(s.handleCreateReport)))
	mux.Handle("GET /api/reports/mine", user(http.HandlerFunc(s.handleMyReports)))
	mux.Handle("GET /api/reports", admin(s.handleListReports))
	mux.Handle("PATCH /api/reports/{id}/status", admin(s.handleUpdateReportStatus))
	mux.Handle("DELETE /api/reports/{id}", admin(s.handleDeleteReport))

	// Reference data
	mux.HandleFunc("GET /api/countries", s.handleCountries)
	mux.HandleFunc("GET /api/states", s.handleStates)
	mux.HandleFunc("GET /api/states/{countryID}", s.handleStatesByCountry)

	// Engine admin
	mux.Handle("POST /api/admin/engines", admin(s.handleCreateEngine))
	mux.Handle("GET /api/admin/engines", admin(s.handleListEngines))
	mux.Handle("PUT /api/admin/engines/{id}", admin(s.handleUpdateEngine))
	mux.Handle("POST /api/admin/engines/{id}/activate", admin(s.handleActivateEngine))
	mux.Handle("DELETE /api/admin/engines/{id}", admin(s.handleDeleteEngine))

	return mux
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. Shutdown is graceful with a 10 second drain.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON decodes a request body, rejecting malformed JSON.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
