// Package asha manages ASHA community health workers: registration, phone
// verification with one-time codes, and field activity logging.
package asha

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"sync"
	"time"

	"arogyarakshak/core/ledger"
	"arogyarakshak/core/notify"
	"arogyarakshak/types/ids"
)

var (
	ErrNotFound = errors.New("worker not found")
	ErrInvalid  = errors.New("invalid asha request")
	ErrConflict = errors.New("worker conflict")
)

const (
	ActionRegister   = "ASHA_REGISTER"
	ActionOTPRequest = "ASHA_OTP_REQUEST"
	ActionOTPVerify  = "ASHA_OTP_VERIFY"
	ActionActivity   = "ASHA_ACTIVITY"
)

const (
	DefaultOTPTTL  = 5 * time.Minute
	MaxOTPAttempts = 5
	otpDigits      = 6
)

type Status string

const (
	StatusPending Status = "pending_verification"
	StatusActive  Status = "active"
)

// OTPResult is the outcome of a verification attempt.
type OTPResult string

const (
	OTPVerified OTPResult = "verified"
	OTPExpired  OTPResult = "expired"
	OTPInvalid  OTPResult = "invalid"
	OTPNotFound OTPResult = "not_found"
	OTPLocked   OTPResult = "locked"
)

// ActivityTypes lists the activities a worker may log.
var ActivityTypes = map[string]bool{
	"home_visit":       true,
	"vaccination":      true,
	"antenatal_care":   true,
	"postnatal_care":   true,
	"health_education": true,
	"referral":         true,
}

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

type Worker struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Village      string     `json:"village"`
	District     string     `json:"district"`
	SupervisorID string     `json:"supervisorId,omitempty"`
	Status       Status     `json:"status"`
	RegisteredAt time.Time  `json:"registeredAt"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
}

type WorkerInput struct {
	Name         string
	Phone        string
	Village      string
	District     string
	SupervisorID string
}

type Activity struct {
	ID        string    `json:"id"`
	WorkerID  string    `json:"workerId"`
	Type      string    `json:"type"`
	PatientID string    `json:"patientId,omitempty"`
	Village   string    `json:"village,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	TxID      string    `json:"txId"`
	LoggedAt  time.Time `json:"loggedAt"`
}

type ActivityInput struct {
	Type      string
	PatientID string
	Village   string
	Notes     string
}

type Summary struct {
	WorkerID        string         `json:"workerId"`
	Status          Status         `json:"status"`
	TotalActivities int            `json:"totalActivities"`
	ByType          map[string]int `json:"byType"`
	LastActivityAt  *time.Time     `json:"lastActivityAt,omitempty"`
}

// OTPIssue is returned to the caller that requested a code. Code is only for
// delivery and must not be persisted.
type OTPIssue struct {
	WorkerID  string         `json:"workerId"`
	Code      string         `json:"-"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Receipt   ledger.Receipt `json:"receipt"`
}

type pendingOTP struct {
	code      string
	expiresAt time.Time
	attempts  int
}

type Manager struct {
	mu         sync.RWMutex
	ledger     ledger.Appender
	notifier   notify.Notifier
	ttl        time.Duration
	workers    map[string]*Worker
	otps       map[string]*pendingOTP
	activities map[string][]Activity
	now        func() time.Time
}

// NewManager returns a manager whose codes live for ttl. A non-positive ttl
// selects DefaultOTPTTL. n may be nil.
func NewManager(l ledger.Appender, n notify.Notifier, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &Manager{
		ledger:     l,
		notifier:   n,
		ttl:        ttl,
		workers:    make(map[string]*Worker),
		otps:       make(map[string]*pendingOTP),
		activities: make(map[string][]Activity),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for registration and OTP expiry.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manager) RegisterWorker(in WorkerInput) (Worker, ledger.Receipt, error) {
	switch {
	case in.Name == "":
		return Worker{}, ledger.Receipt{}, fmt.Errorf("%w: name is required", ErrInvalid)
	case !phonePattern.MatchString(in.Phone):
		return Worker{}, ledger.Receipt{}, fmt.Errorf("%w: phone must be 10 digits", ErrInvalid)
	case in.Village == "" || in.District == "":
		return Worker{}, ledger.Receipt{}, fmt.Errorf("%w: village and district are required", ErrInvalid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		if w.Phone == in.Phone {
			return Worker{}, ledger.Receipt{}, fmt.Errorf("%w: phone already registered to %s", ErrConflict, w.ID)
		}
	}
	w := &Worker{
		ID:           ids.NewEntityID("ASHA"),
		Name:         in.Name,
		Phone:        in.Phone,
		Village:      in.Village,
		District:     in.District,
		SupervisorID: in.SupervisorID,
		Status:       StatusPending,
		RegisteredAt: m.now().UTC(),
	}
	actor := "asha:" + w.ID
	if in.SupervisorID != "" {
		actor = "staff:" + in.SupervisorID
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    actor,
		Action:   ActionRegister,
		RecordID: w.ID,
		Details:  map[string]any{"village": w.Village, "district": w.District},
	})
	if err != nil {
		return Worker{}, ledger.Receipt{}, err
	}
	m.workers[w.ID] = w
	return *w, receipt, nil
}

func newCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// RequestOTP issues a fresh code, replacing any pending one.
func (m *Manager) RequestOTP(workerID string) (OTPIssue, error) {
	code, err := newCode()
	if err != nil {
		return OTPIssue{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return OTPIssue{}, fmt.Errorf("%w: %s", ErrNotFound, workerID)
	}
	expires := m.now().UTC().Add(m.ttl)
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    "asha:" + workerID,
		Action:   ActionOTPRequest,
		RecordID: workerID,
		Details:  map[string]any{"expiresAt": expires.Format(time.RFC3339)},
	})
	if err != nil {
		return OTPIssue{}, err
	}
	m.otps[workerID] = &pendingOTP{code: code, expiresAt: expires}
	if m.notifier != nil {
		m.notifier.Notify(notify.Notification{
			Type:      notify.NotifyUser,
			Recipient: w.Phone,
			Subject:   "asha_otp",
			Reference: workerID,
			Body:      code,
		})
	}
	return OTPIssue{WorkerID: workerID, Code: code, ExpiresAt: expires, Receipt: receipt}, nil
}

// VerifyOTP checks code against the pending one. Expiry is evaluated here,
// so an expired code is reported as such even when it matches.
func (m *Manager) VerifyOTP(workerID, code string) (OTPResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return OTPNotFound, nil
	}
	p, ok := m.otps[workerID]
	if !ok {
		return OTPNotFound, nil
	}
	if p.attempts >= MaxOTPAttempts {
		return OTPLocked, nil
	}
	now := m.now().UTC()
	if now.After(p.expiresAt) {
		delete(m.otps, workerID)
		return OTPExpired, nil
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(p.code)) != 1 {
		p.attempts++
		if p.attempts >= MaxOTPAttempts {
			return OTPLocked, nil
		}
		return OTPInvalid, nil
	}

	_, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    "asha:" + workerID,
		Action:   ActionOTPVerify,
		RecordID: workerID,
		Details:  map[string]any{"result": string(OTPVerified)},
	})
	if err != nil {
		return "", err
	}
	delete(m.otps, workerID)
	w.Status = StatusActive
	w.VerifiedAt = &now
	return OTPVerified, nil
}

func (m *Manager) LogActivity(workerID string, in ActivityInput) (Activity, error) {
	if !ActivityTypes[in.Type] {
		return Activity{}, fmt.Errorf("%w: unknown activity type %q", ErrInvalid, in.Type)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return Activity{}, fmt.Errorf("%w: %s", ErrNotFound, workerID)
	}
	if w.Status != StatusActive {
		return Activity{}, fmt.Errorf("%w: worker %s is not verified", ErrConflict, workerID)
	}
	village := in.Village
	if village == "" {
		village = w.Village
	}
	a := Activity{
		ID:        ids.NewEntityID("ACT"),
		WorkerID:  workerID,
		Type:      in.Type,
		PatientID: in.PatientID,
		Village:   village,
		Notes:     in.Notes,
		LoggedAt:  m.now().UTC(),
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    "asha:" + workerID,
		Action:   ActionActivity,
		RecordID: a.ID,
		Details: map[string]any{
			"type":      a.Type,
			"patientId": a.PatientID,
			"village":   a.Village,
		},
	})
	if err != nil {
		return Activity{}, err
	}
	a.TxID = receipt.TxID
	m.activities[workerID] = append(m.activities[workerID], a)
	return a, nil
}

func (m *Manager) Worker(id string) (Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return Worker{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *w, nil
}

// Activities returns the worker's activities, newest first.
func (m *Manager) Activities(workerID string) ([]Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.workers[workerID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, workerID)
	}
	src := m.activities[workerID]
	out := make([]Activity, len(src))
	for i, a := range src {
		out[len(src)-1-i] = a
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	return out, nil
}

func (m *Manager) Summary(workerID string) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[workerID]
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrNotFound, workerID)
	}
	s := Summary{WorkerID: workerID, Status: w.Status, ByType: make(map[string]int)}
	for _, a := range m.activities[workerID] {
		s.TotalActivities++
		s.ByType[a.Type]++
		if s.LastActivityAt == nil || a.LoggedAt.After(*s.LastActivityAt) {
			t := a.LoggedAt
			s.LastActivityAt = &t
		}
	}
	return s, nil
}
