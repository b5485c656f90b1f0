// health.go - HTTP handlers for probes and node status
package server

import (
	"net/http"

	"arogyarakshak/core/explorer"
	"arogyarakshak/core/ledger"
)

// APIVersion is the version of the HTTP API.
const APIVersion = "v1"

// StatusResponse represents the JSON structure for /status endpoint
type StatusResponse struct {
	Status      string      `json:"status"`
	Uptime      int64       `json:"uptime_seconds"`
	BlockHeight uint64      `json:"block_height"`
	Version     string      `json:"version"`
	APIVersion  string      `json:"api_version"`
	LastBlock   string      `json:"last_block_time"`
	Metrics     NodeMetrics `json:"metrics"`
}

// NodeHealthResponse is the response type for the /nodehealth endpoint
type NodeHealthResponse struct {
	Status  string      `json:"status"`
	Metrics NodeMetrics `json:"metrics"`
}

// HandleLiveness reports whether the process is serving and the ledger has
// not been closed.
func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	alive := s.ledgerState() != ledger.Closed
	code := http.StatusOK
	if !alive {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"alive": alive})
}

// HandleReadiness reports whether the ledger accepts transactions.
func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ready := s.ledgerState() == ledger.Ready
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"ready": ready})
}

// HandleNodeHealth responds to /nodehealth (summary health)
func (s *Server) HandleNodeHealth(w http.ResponseWriter, r *http.Request) {
	m := s.GetNodeMetrics()
	writeJSON(w, http.StatusOK, NodeHealthResponse{Status: nodeStatus(m), Metrics: m})
}

// HandleStatus responds to /status with node status
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	m := s.GetNodeMetrics()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      nodeStatus(m),
		Uptime:      m.UptimeSeconds,
		BlockHeight: m.BlockHeight,
		Version:     explorer.Version,
		APIVersion:  APIVersion,
		LastBlock:   m.LastBlockTime,
		Metrics:     m,
	})
}
