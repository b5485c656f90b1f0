package server

import (
	"net/http"
	"strconv"

	"arogyarakshak/core/compliance"
)

// RegisterComplianceAPI registers the compliance scoring endpoints.
func RegisterComplianceAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("POST /api/compliance/scores", s.handleUpdateScores)
	mux.HandleFunc("GET /api/compliance/entities/{id}", s.handleGetCompliance)
	mux.HandleFunc("GET /api/compliance/violations", s.handleListViolations)
	mux.HandleFunc("POST /api/compliance/violations", s.handleReportViolation)
	mux.HandleFunc("POST /api/compliance/violations/{id}/resolve", s.handleResolveViolation)
	mux.HandleFunc("GET /api/compliance/leaderboard", s.handleLeaderboard)
}

func (s *Server) handleUpdateScores(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityID string `json:"entityId"`
		By       string `json:"by"`
		compliance.Scores
	}
	if err := s.decode(r, "compliance_scores", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	status, receipt, err := s.Compliance.UpdateScores(req.EntityID, actor(r, req.By), req.Scores)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"compliance": status, "receipt": receipt})
}

func (s *Server) handleGetCompliance(w http.ResponseWriter, r *http.Request) {
	status, err := s.Compliance.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"compliance": status})
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	vs := s.Compliance.Violations(r.URL.Query().Get("entityId"))
	ok(w, http.StatusOK, map[string]any{"violations": vs, "count": len(vs)})
}

func (s *Server) handleReportViolation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityID    string `json:"entityId"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
		ReportedBy  string `json:"reportedBy"`
	}
	if err := s.decode(r, "compliance_violation", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	v, receipt, err := s.Compliance.ReportViolation(req.EntityID, compliance.Severity(req.Severity), req.Description, actor(r, req.ReportedBy))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"violation": v, "receipt": receipt})
}

func (s *Server) handleResolveViolation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By string `json:"by"`
	}
	if err := s.decode(r, "compliance_resolve", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	v, receipt, err := s.Compliance.ResolveViolation(r.PathValue("id"), actor(r, req.By))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"violation": v, "receipt": receipt})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	board := s.Compliance.Leaderboard(limit)
	ok(w, http.StatusOK, map[string]any{"leaderboard": board})
}
