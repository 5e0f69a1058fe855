// ABOUTME: Engine configuration admin HTTP handlers
// ABOUTME: CRUD plus the transactional single-active activation protocol

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaxassist/chatd/internal/store"
)

// engineRequest is the JSON request body for engine create/update.
type engineRequest struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description"`
}

// engineResponse is the JSON shape for engine config records.
type engineResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// handleCreateEngine handles POST /api/admin/engines.
func (s *Server) handleCreateEngine(w http.ResponseWriter, r *http.Request) {
	var req engineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Key == "" {
		s.sendJSONError(w, http.StatusBadRequest, "name and key are required")
		return
	}

	now := time.Now().UTC()
	cfg := &store.EngineConfig{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Key:         req.Key,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateEngineConfig(r.Context(), cfg); err != nil {
		if errors.Is(err, store.ErrDuplicateEngine) {
			s.sendJSONError(w, http.StatusConflict, "engine config already exists")
			return
		}
		s.logger.Error("failed to create engine config", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusCreated, toEngineResponse(cfg))
}

// handleListEngines handles GET /api/admin/engines.
func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListEngineConfigs(r.Context())
	if err != nil {
		s.logger.Error("failed to list engine configs", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]engineResponse, 0, len(configs))
	for _, cfg := range configs {
		response = append(response, toEngineResponse(cfg))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleUpdateEngine handles PUT /api/admin/engines/{id}.
func (s *Server) handleUpdateEngine(w http.ResponseWriter, r *http.Request) {
	engineID := r.PathValue("id")

	var req engineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Key == "" {
		s.sendJSONError(w, http.StatusBadRequest, "name and key are required")
		return
	}

	if err := s.store.UpdateEngineConfig(r.Context(), engineID, req.Name, req.Key, req.Description); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "engine config not found")
			return
		}
		if errors.Is(err, store.ErrDuplicateEngine) {
			s.sendJSONError(w, http.StatusConflict, "engine config already exists")
			return
		}
		s.logger.Error("failed to update engine config", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	cfg, err := s.store.GetEngineConfig(r.Context(), engineID)
	if err != nil {
		s.logger.Error("failed to load engine config", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, toEngineResponse(cfg))
}

// handleActivateEngine handles POST /api/admin/engines/{id}/activate. The
// activation deactivates all other configs in the same transaction; a
// missing id leaves the previous activation untouched.
func (s *Server) handleActivateEngine(w http.ResponseWriter, r *http.Request) {
	engineID := r.PathValue("id")

	if err := s.store.ActivateEngineConfig(r.Context(), engineID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "engine config not found")
			return
		}
		s.logger.Error("failed to activate engine config", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	cfg, err := s.store.GetEngineConfig(r.Context(), engineID)
	if err != nil {
		s.logger.Error("failed to load engine config", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, toEngineResponse(cfg))
}

// handleDeleteEngine handles DELETE /api/admin/engines/{id}.
func (s *Server) handleDeleteEngine(w http.ResponseWriter, r *http.Request) {
	engineID := r.PathValue("id")

	if err := s.store.DeleteEngineConfig(r.Context(), engineID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "engine config not found")
			return
		}
		s.logger.Error("failed to delete engine config", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func toEngineResponse(cfg *store.EngineConfig) engineResponse {
	return engineResponse{
		ID:          cfg.ID,
		Name:        cfg.Name,
		Key:         cfg.Key,
		Description: cfg.Description,
		Active:      cfg.Active,
		CreatedAt:   cfg.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   cfg.UpdatedAt.Format(time.RFC3339),
	}
}
