package server

import (
	"net/http"
	"strconv"
)

// RegisterExplorerAPI registers the explorer and audit flag endpoints.
func RegisterExplorerAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /api/explorer/search", s.handleExplorerSearch)
	mux.HandleFunc("GET /api/explorer/stats", s.handleExplorerStats)
	mux.HandleFunc("GET /api/explorer/network", s.handleExplorerNetwork)
	mux.HandleFunc("GET /api/explorer/blocks/{blockNo}", s.handleExplorerBlock)
	mux.HandleFunc("POST /api/audit/flag", s.handleFlagTransaction)
	mux.HandleFunc("GET /api/audit/flags", s.handleListFlags)
}

func (s *Server) handleExplorerSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	matches, err := s.Explorer.Search(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"query": q, "results": matches, "count": len(matches)})
}

func (s *Server) handleExplorerStats(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, map[string]any{"stats": s.Explorer.Stats()})
}

func (s *Server) handleExplorerNetwork(w http.ResponseWriter, r *http.Request) {
	info, err := s.Explorer.Network()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"network": info})
}

func (s *Server) handleExplorerBlock(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.PathValue("blockNo"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "blockNo must be a non-negative integer")
		return
	}
	b, err := s.Explorer.Block(n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"block": b})
}

func (s *Server) handleFlagTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxID     string `json:"txId"`
		Auditor  string `json:"auditor"`
		Reason   string `json:"reason"`
		Severity string `json:"severity"`
	}
	if err := s.decode(r, "audit_flag", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	flag, err := s.Explorer.FlagTransaction(req.TxID, actor(r, req.Auditor), req.Reason, req.Severity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"flag": flag})
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	flags := s.Explorer.Flags()
	ok(w, http.StatusOK, map[string]any{"flags": flags, "count": len(flags)})
}
