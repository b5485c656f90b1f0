// Package compliance scores healthcare entities and tracks violations.
package compliance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"arogyarakshak/core/ledger"
	"arogyarakshak/types/ids"
)

var (
	ErrNotFound = errors.New("compliance entity not found")
	ErrInvalid  = errors.New("invalid compliance request")
	ErrConflict = errors.New("compliance conflict")
)

const (
	ActionUpdate    = "COMPLIANCE_UPDATE"
	ActionViolation = "COMPLIANCE_VIOLATION"
	ActionResolve   = "COMPLIANCE_RESOLVE"
)

// Category weights of the overall score.
const (
	WeightDataSecurity      = 0.30
	WeightConsentManagement = 0.25
	WeightAuditTrail        = 0.25
	WeightRecordAccuracy    = 0.20
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Penalties deducted from the score for each open violation.
var Penalties = map[Severity]float64{
	SeverityLow:      2,
	SeverityMedium:   5,
	SeverityHigh:     10,
	SeverityCritical: 20,
}

type Badge string

const (
	BadgeNone   Badge = ""
	BadgeGold   Badge = "gold"
	BadgeSilver Badge = "silver"
	BadgeBronze Badge = "bronze"
)

// Scores are the per-category ratings, each 0..100.
type Scores struct {
	DataSecurity      float64 `json:"dataSecurity"`
	ConsentManagement float64 `json:"consentManagement"`
	AuditTrail        float64 `json:"auditTrail"`
	RecordAccuracy    float64 `json:"recordAccuracy"`
}

func (s Scores) validate() error {
	for name, v := range map[string]float64{
		"dataSecurity":      s.DataSecurity,
		"consentManagement": s.ConsentManagement,
		"auditTrail":        s.AuditTrail,
		"recordAccuracy":    s.RecordAccuracy,
	} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalid, name)
		}
	}
	return nil
}

type Violation struct {
	ID          string     `json:"id"`
	EntityID    string     `json:"entityId"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
	ReportedBy  string     `json:"reportedBy"`
	ReportedAt  time.Time  `json:"reportedAt"`
	Resolved    bool       `json:"resolved"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// Status is an entity's current compliance position.
type Status struct {
	EntityID       string    `json:"entityId"`
	Scores         Scores    `json:"scores"`
	Score          float64   `json:"score"`
	Badge          Badge     `json:"badge"`
	OpenViolations int       `json:"openViolations"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Score computes the weighted score minus penalties for open violations,
// clamped to [0,100] and rounded to two decimals.
func Score(s Scores, open []Violation) float64 {
	score := WeightDataSecurity*s.DataSecurity +
		WeightConsentManagement*s.ConsentManagement +
		WeightAuditTrail*s.AuditTrail +
		WeightRecordAccuracy*s.RecordAccuracy
	for _, v := range open {
		score -= Penalties[v.Severity]
	}
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*100) / 100
}

// BadgeFor maps a score to a badge. An open critical violation forfeits any
// badge.
func BadgeFor(score float64, open []Violation) Badge {
	for _, v := range open {
		if v.Severity == SeverityCritical {
			return BadgeNone
		}
	}
	switch {
	case score >= 90:
		return BadgeGold
	case score >= 75:
		return BadgeSilver
	case score >= 60:
		return BadgeBronze
	}
	return BadgeNone
}

type entity struct {
	scores     Scores
	violations []string
	updatedAt  time.Time
}

type Manager struct {
	mu         sync.RWMutex
	ledger     ledger.Appender
	entities   map[string]*entity
	violations map[string]*Violation
	now        func() time.Time
}

func NewManager(l ledger.Appender) *Manager {
	return &Manager{
		ledger:     l,
		entities:   make(map[string]*entity),
		violations: make(map[string]*Violation),
		now:        time.Now,
	}
}

// UpdateScores replaces an entity's category scores.
func (m *Manager) UpdateScores(entityID, by string, s Scores) (Status, ledger.Receipt, error) {
	if entityID == "" {
		return Status{}, ledger.Receipt{}, fmt.Errorf("%w: entityId is required", ErrInvalid)
	}
	if err := s.validate(); err != nil {
		return Status{}, ledger.Receipt{}, err
	}
	if by == "" {
		by = "auditor:system"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	open := m.openLocked(entityID)
	score := Score(s, open)
	badge := BadgeFor(score, open)
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    by,
		Action:   ActionUpdate,
		RecordID: entityID,
		Details: map[string]any{
			"scores": s,
			"score":  score,
			"badge":  string(badge),
		},
	})
	if err != nil {
		return Status{}, ledger.Receipt{}, err
	}
	e := m.entityLocked(entityID)
	e.scores = s
	e.updatedAt = m.now().UTC()
	return m.statusLocked(entityID), receipt, nil
}

// ReportViolation opens a violation against an entity.
func (m *Manager) ReportViolation(entityID string, severity Severity, description, reportedBy string) (Violation, ledger.Receipt, error) {
	if entityID == "" || description == "" {
		return Violation{}, ledger.Receipt{}, fmt.Errorf("%w: entityId and description are required", ErrInvalid)
	}
	if _, ok := Penalties[severity]; !ok {
		return Violation{}, ledger.Receipt{}, fmt.Errorf("%w: unknown severity %q", ErrInvalid, severity)
	}
	if reportedBy == "" {
		reportedBy = "auditor:system"
	}
	v := &Violation{
		ID:          ids.NewEntityID("VIO"),
		EntityID:    entityID,
		Severity:    severity,
		Description: description,
		ReportedBy:  reportedBy,
		ReportedAt:  m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    reportedBy,
		Action:   ActionViolation,
		RecordID: entityID,
		Details: map[string]any{
			"violationId": v.ID,
			"severity":    string(severity),
			"description": description,
		},
	})
	if err != nil {
		return Violation{}, ledger.Receipt{}, err
	}
	m.violations[v.ID] = v
	e := m.entityLocked(entityID)
	e.violations = append(e.violations, v.ID)
	return *v, receipt, nil
}

// ResolveViolation closes an open violation.
func (m *Manager) ResolveViolation(id, by string) (Violation, ledger.Receipt, error) {
	if by == "" {
		by = "auditor:system"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.violations[id]
	if !ok {
		return Violation{}, ledger.Receipt{}, fmt.Errorf("%w: violation %s", ErrNotFound, id)
	}
	if v.Resolved {
		return Violation{}, ledger.Receipt{}, fmt.Errorf("%w: violation %s already resolved", ErrConflict, id)
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    by,
		Action:   ActionResolve,
		RecordID: v.EntityID,
		Details:  map[string]any{"violationId": id},
	})
	if err != nil {
		return Violation{}, ledger.Receipt{}, err
	}
	at := m.now().UTC()
	v.Resolved = true
	v.ResolvedBy = by
	v.ResolvedAt = &at
	return *v, receipt, nil
}

// Get returns an entity's status.
func (m *Manager) Get(entityID string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.entities[entityID]; !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrNotFound, entityID)
	}
	return m.statusLocked(entityID), nil
}

// Violations lists an entity's violations oldest first, or all of them when
// entityID is empty.
func (m *Manager) Violations(entityID string) []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Violation{}
	for _, v := range m.violations {
		if entityID == "" || v.EntityID == entityID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.Before(out[j].ReportedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Leaderboard ranks entities by score descending, then entity id. A
// non-positive limit returns every entity.
func (m *Manager) Leaderboard(limit int) []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.entities))
	for id := range m.entities {
		out = append(out, m.statusLocked(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EntityID < out[j].EntityID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Manager) entityLocked(id string) *entity {
	e, ok := m.entities[id]
	if !ok {
		e = &entity{}
		m.entities[id] = e
	}
	return e
}

func (m *Manager) openLocked(entityID string) []Violation {
	e, ok := m.entities[entityID]
	if !ok {
		return nil
	}
	var open []Violation
	for _, id := range e.violations {
		if v := m.violations[id]; !v.Resolved {
			open = append(open, *v)
		}
	}
	return open
}

func (m *Manager) statusLocked(entityID string) Status {
	e := m.entities[entityID]
	open := m.openLocked(entityID)
	score := Score(e.scores, open)
	return Status{
		EntityID:       entityID,
		Scores:         e.scores,
		Score:          score,
		Badge:          BadgeFor(score, open),
		OpenViolations: len(open),
		UpdatedAt:      e.updatedAt,
	}
}
