package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"arogyarakshak/core/ledger"
)

const (
	defaultTxLimit = 50
	maxTxLimit     = 500
)

// RegisterLedgerAPI registers the read-only ledger endpoints.
func RegisterLedgerAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /api/ledger/stats", s.handleLedgerStats)
	mux.HandleFunc("GET /api/ledger/transactions", s.handleLedgerTransactions)
	mux.HandleFunc("GET /api/ledger/transactions/{txId}", s.handleLedgerTransaction)
	mux.HandleFunc("GET /api/ledger/verify", s.handleLedgerVerify)
	mux.HandleFunc("GET /api/ledger/export", s.handleLedgerExport)
}

func (s *Server) handleLedgerStats(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, map[string]any{"stats": s.Ledger.Stats()})
}

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD. A bare end date covers the
// whole day.
func parseDate(raw string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not RFC3339 or YYYY-MM-DD", errBadRequest, raw)
	}
	if end {
		d = d.Add(24*time.Hour - time.Millisecond)
	}
	return d, nil
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{
		Actor:    q.Get("actor"),
		Action:   q.Get("action"),
		RecordID: q.Get("recordId"),
		Limit:    defaultTxLimit,
	}
	var err error
	if raw := q.Get("from"); raw != "" {
		if f.From, err = parseDate(raw, false); err != nil {
			return f, err
		}
	}
	if raw := q.Get("to"); raw != "" {
		if f.To, err = parseDate(raw, true); err != nil {
			return f, err
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("%w: to is before from", errBadRequest)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
		}
		f.Limit = min(n, maxTxLimit)
	}
	return f, nil
}

func (s *Server) handleLedgerTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs := s.Ledger.Query(f)
	ok(w, http.StatusOK, map[string]any{"transactions": txs, "count": len(txs), "limit": f.Limit})
}

func (s *Server) handleLedgerTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.Ledger.Transaction(r.PathValue("txId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, map[string]any{"integrity": s.Ledger.VerifyIntegrity()})
}

// handleLedgerExport streams CSV by default, or the chain as JSON with
// format=json.
func (s *Server) handleLedgerExport(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "json":
		blocks := s.Ledger.Blocks()
		w.Header().Set("Content-Disposition", `attachment; filename="ledger.json"`)
		writeJSON(w, http.StatusOK, blocks)
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
		if err := s.Ledger.ExportCSV(w); err != nil {
			s.logger().Printf("[API] ledger export: %v", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or json")
	}
}
