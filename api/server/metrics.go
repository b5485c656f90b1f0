// metrics.go - Metrics collection for the Arogya Rakshak node
package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"

	"arogyarakshak/core/ledger"
)

// NodeMetrics holds granular health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	LedgerState    string  `json:"ledger_state"`
	BlockHeight    uint64  `json:"block_height"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	Goroutines     int     `json:"goroutines"`
	DiskFreeMB     float64 `json:"disk_free_mb"`
	LastBlockTime  string  `json:"last_block_time"`
}

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	m := NodeMetrics{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		LedgerState:   s.ledgerState().String(),
		Goroutines:    runtime.NumGoroutine(),
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.MemoryMB = float64(mem.Alloc) / (1024 * 1024)

	// CPU usage since the previous call
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPULoadPercent = pct[0]
	}

	diskPath := s.DataDir
	if diskPath == "" {
		diskPath = "."
	}
	if usage, err := disk.Usage(diskPath); err == nil {
		m.DiskFreeMB = float64(usage.Free) / (1024 * 1024)
	}

	if s.Ledger != nil && s.ledgerState() == ledger.Ready {
		m.BlockHeight = s.Ledger.Height()
		m.LastBlockTime = s.Ledger.Tip().Timestamp
	}
	return m
}

func (s *Server) ledgerState() ledger.State {
	if s.Ledger == nil {
		return ledger.Uninitialized
	}
	return s.Ledger.State()
}

// nodeStatus derives a one-word summary from the metrics.
func nodeStatus(m NodeMetrics) string {
	switch m.LedgerState {
	case ledger.Ready.String():
		return "healthy"
	case ledger.Closed.String():
		return "stopped"
	}
	return "initializing"
}
