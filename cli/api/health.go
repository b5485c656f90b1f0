package api

import (
	"errors"
	"net/http"
)

// HealthMetrics mirrors the /nodehealth response.
type HealthMetrics struct {
	Status  string `json:"status"`
	Metrics struct {
		UptimeSeconds  int64   `json:"uptime_seconds"`
		LedgerState    string  `json:"ledger_state"`
		BlockHeight    uint64  `json:"block_height"`
		CPULoadPercent float64 `json:"cpu_load_percent"`
		MemoryMB       float64 `json:"memory_mb"`
		Goroutines     int     `json:"goroutines"`
		DiskFreeMB     float64 `json:"disk_free_mb"`
		LastBlockTime  string  `json:"last_block_time"`
	} `json:"metrics"`
}

// Status mirrors the /status response.
type Status struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime_seconds"`
	BlockHeight uint64 `json:"block_height"`
	Version     string `json:"version"`
	APIVersion  string `json:"api_version"`
	LastBlock   string `json:"last_block_time"`
}

func (c *Client) Health() (HealthMetrics, error) {
	var h HealthMetrics
	return h, c.Get("/nodehealth", nil, &h)
}

func (c *Client) Status() (Status, error) {
	var s Status
	return s, c.Get("/status", nil, &s)
}

// probe returns the boolean field of a probe endpoint. A 503 means false.
func (c *Client) probe(path, field string) (bool, error) {
	var body map[string]bool
	err := c.Get(path, nil, &body)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return body[field], nil
}

func (c *Client) Liveness() (bool, error) { return c.probe("/health/liveness", "alive") }

func (c *Client) Readiness() (bool, error) { return c.probe("/health/readiness", "ready") }
