// ABOUTME: Public reference-data HTTP handlers for countries and states
// ABOUTME: Served from the embedded refdata package, no auth required

package server

import (
	"net/http"
	"strconv"

	"github.com/vaxassist/chatd/internal/refdata"
)

// handleCountries handles GET /api/countries.
func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := refdata.Countries()
	if err != nil {
		s.logger.Error("failed to load countries", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, countries)
}

// handleStates handles GET /api/states.
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := refdata.States()
	if err != nil {
		s.logger.Error("failed to load states", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, states)
}

// handleStatesByCountry handles GET /api/states/{countryID}.
func (s *Server) handleStatesByCountry(w http.ResponseWriter, r *http.Request) {
	countryID, err := strconv.Atoi(r.PathValue("countryID"))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid country id")
		return
	}

	states, err := refdata.StatesByCountry(countryID)
	if err != nil {
		s.logger.Error("failed to load states", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(states) == 0 {
		s.sendJSONError(w, http.StatusNotFound, "no states found for country")
		return
	}
	s.writeJSON(w, http.StatusOK, states)
}
