package server

import (
	"log"
	"sync"
	"time"
)

const rateLimitWindow = 60 * time.Second

// Progressive ban durations for clients that keep exceeding the limit.
var banDurations = []time.Duration{
	1 * time.Minute,
	10 * time.Minute,
	1 * time.Hour,
}

// banMemory is how long a client's violation count outlives its last ban.
const banMemory = 24 * time.Hour

type clientWindow struct {
	requests  []time.Time
	bans      int
	bannedTil time.Time
}

// idle reports whether the client has no recent requests and its violation
// history has expired.
func (c *clientWindow) idle(now time.Time) bool {
	for _, t := range c.requests {
		if now.Sub(t) < rateLimitWindow {
			return false
		}
	}
	if c.bans == 0 {
		return !now.Before(c.bannedTil)
	}
	return now.After(c.bannedTil.Add(banMemory))
}

// RateLimiter is a sliding-window limiter keyed by client address. Idle
// clients are swept once per window.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	clients   map[string]*clientWindow
	lastSweep time.Time
	now       func() time.Time
	logger    *log.Logger
}

// NewRateLimiter allows perMinute requests per client. It returns nil when
// perMinute is zero, which disables limiting.
func NewRateLimiter(perMinute int, logger *log.Logger) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RateLimiter{
		limit:   perMinute,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
		logger:  logger,
	}
}

// Allow records a request from addr and reports whether it may proceed.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	c := rl.clients[addr]
	if c == nil {
		c = &clientWindow{}
		rl.clients[addr] = c
	}
	if now.Before(c.bannedTil) {
		return false
	}

	// Keep only recent requests
	recent := c.requests[:0]
	for _, t := range c.requests {
		if now.Sub(t) < rateLimitWindow {
			recent = append(recent, t)
		}
	}
	c.requests = append(recent, now)
	if len(c.requests) <= rl.limit {
		return true
	}

	c.bans++
	dur := banDurations[len(banDurations)-1]
	if c.bans <= len(banDurations) {
		dur = banDurations[c.bans-1]
	}
	c.bannedTil = now.Add(dur)
	c.requests = nil
	rl.logger.Printf("[RATE LIMIT] %s blocked for %s (violation #%d)", addr, dur, c.bans)
	return false
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rateLimitWindow {
		return
	}
	rl.lastSweep = now
	for addr, c := range rl.clients {
		if c.idle(now) {
			delete(rl.clients, addr)
		}
	}
}

// Banned reports whether addr is currently blocked.
func (rl *RateLimiter) Banned(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[addr]
	return ok && rl.now().Before(c.bannedTil)
}

// tracked returns the number of clients currently held in memory.
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
