package server

import "net/http"

// handleHikariMetadata serves the per-target catalog projection an Agent
// bootstraps from, per spec.md §4.5/§6.
func (s *Server) handleHikariMetadata(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	client, environment, solution := q.Get("client"), q.Get("environment"), q.Get("solution")
	if client == "" || environment == "" || solution == "" {
		jsonErr(w, http.StatusBadRequest, "client, environment, and solution are all required")
		return
	}

	cat, err := s.Projector.ByMetadata(r.Context(), client, environment, solution)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonOK(w, cat)
}

// handleHikariName serves the catalog projection for a single named
// deployment.
func (s *Server) handleHikariName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonErr(w, http.StatusBadRequest, "name is required")
		return
	}

	cat, err := s.Projector.ByName(r.Context(), name)
	if err != nil {
		writeDBErr(w, "hikari.name", err)
		return
	}
	jsonOK(w, cat)
}
