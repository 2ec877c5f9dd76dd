package http

import (
	"net/http"
	"strings"
)

type rosterRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"period": s.ledger.Period().String(),
			"roster": s.ledger.Roster(),
		})

	case http.MethodPost:
		var req rosterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
			return
		}
		if err := s.ledger.AddParticipant(r.Context(), name); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"roster": s.ledger.Roster()})

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleRosterByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/roster/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, "DELETE")
		return
	}

	if err := s.ledger.RemoveParticipant(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
