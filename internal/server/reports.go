// ABOUTME: Report ticketing HTTP handlers
// ABOUTME: Users file and view their own reports, admins triage all of them

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaxassist/chatd/internal/auth"
	"github.com/vaxassist/chatd/internal/store"
)

// reportResponse is the JSON shape for report records.
type reportResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// handleCreateReport handles POST /api/reports.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		s.sendJSONError(w, http.StatusBadRequest, "title is required")
		return
	}

	now := time.Now().UTC()
	report := &store.Report{
		ID:          uuid.New().String(),
		UserID:      id.UserID,
		Title:       req.Title,
		Description: req.Description,
		Status:      store.ReportStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateReport(r.Context(), report); err != nil {
		s.logger.Error("failed to create report", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusCreated, toReportResponse(report))
}

// handleMyReports handles GET /api/reports/mine.
func (s *Server) handleMyReports(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	reports, err := s.store.ListUserReports(r.Context(), id.UserID)
	if err != nil {
		s.logger.Error("failed to list reports", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeReports(w, reports)
}

// handleListReports handles GET /api/reports (admin).
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context())
	if err != nil {
		s.logger.Error("failed to list reports", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeReports(w, reports)
}

// handleUpdateReportStatus handles PATCH /api/reports/{id}/status (admin).
func (s *Server) handleUpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status != store.ReportStatusOpen && req.Status != store.ReportStatusResolved {
		s.sendJSONError(w, http.StatusBadRequest, "status must be open or resolved")
		return
	}

	if err := s.store.UpdateReportStatus(r.Context(), reportID, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("failed to update report", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	report, err := s.store.GetReport(r.Context(), reportID)
	if err != nil {
		s.logger.Error("failed to load report", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, toReportResponse(report))
}

// handleDeleteReport handles DELETE /api/reports/{id} (admin).
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteReport(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("failed to delete report", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) writeReports(w http.ResponseWriter, reports []*store.Report) {
	response := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		response = append(response, toReportResponse(report))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func toReportResponse(report *store.Report) reportResponse {
	return reportResponse{
		ID:          report.ID,
		UserID:      report.UserID,
		Title:       report.Title,
		Description: report.Description,
		Status:      report.Status,
		CreatedAt:   report.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   report.UpdatedAt.Format(time.RFC3339),
	}
}
