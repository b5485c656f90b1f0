// Package insurance handles claims and pre-authorizations.
package insurance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"arogyarakshak/core/ledger"
	"arogyarakshak/core/notify"
	"arogyarakshak/types/ids"
)

var (
	ErrNotFound = errors.New("claim not found")
	ErrInvalid  = errors.New("invalid insurance request")
	ErrConflict = errors.New("claim conflict")
)

const (
	ActionClaimSubmit = "CLAIM_SUBMIT"
	ActionClaimReview = "CLAIM_REVIEW"
	ActionPreAuth     = "PREAUTH_REQUEST"
)

// DefaultAutoApproveLimit is the estimated cost up to which pre-authorizations
// are approved without review.
const DefaultAutoApproveLimit = 50000

type ClaimStatus string

const (
	ClaimSubmitted ClaimStatus = "submitted"
	ClaimApproved  ClaimStatus = "approved"
	ClaimRejected  ClaimStatus = "rejected"
)

type PreAuthStatus string

const (
	PreAuthApproved      PreAuthStatus = "approved"
	PreAuthPendingReview PreAuthStatus = "pending_review"
)

type Claim struct {
	ID             string      `json:"id"`
	PolicyNumber   string      `json:"policyNumber"`
	PatientID      string      `json:"patientId"`
	HospitalID     string      `json:"hospitalId"`
	Amount         float64     `json:"amount"`
	ApprovedAmount float64     `json:"approvedAmount"`
	Diagnosis      string      `json:"diagnosis"`
	RecordIDs      []string    `json:"recordIds"`
	Status         ClaimStatus `json:"status"`
	Reviewer       string      `json:"reviewer,omitempty"`
	ReviewNote     string      `json:"reviewNote,omitempty"`
	TxIDs          []string    `json:"txIds"`
	SubmittedAt    time.Time   `json:"submittedAt"`
	ReviewedAt     *time.Time  `json:"reviewedAt,omitempty"`
}

func (c *Claim) clone() Claim {
	out := *c
	out.RecordIDs = append([]string{}, c.RecordIDs...)
	out.TxIDs = append([]string{}, c.TxIDs...)
	return out
}

type ClaimInput struct {
	PolicyNumber string
	PatientID    string
	HospitalID   string
	Amount       float64
	Diagnosis    string
	RecordIDs    []string
}

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

type ReviewInput struct {
	Reviewer string
	Decision Decision
	// ApprovedAmount defaults to the claimed amount when zero.
	ApprovedAmount float64
	Note           string
}

type PreAuth struct {
	ID            string        `json:"id"`
	PatientID     string        `json:"patientId"`
	HospitalID    string        `json:"hospitalId"`
	Procedure     string        `json:"procedure"`
	EstimatedCost float64       `json:"estimatedCost"`
	Status        PreAuthStatus `json:"status"`
	TxID          string        `json:"txId"`
	RequestedAt   time.Time     `json:"requestedAt"`
}

type PreAuthInput struct {
	PatientID     string
	HospitalID    string
	Procedure     string
	EstimatedCost float64
}

type Manager struct {
	mu               sync.RWMutex
	ledger           ledger.Appender
	notifier         notify.Notifier
	autoApproveLimit float64
	claims           map[string]*Claim
	preAuths         map[string]*PreAuth
	now              func() time.Time
}

// NewManager builds a manager. A negative autoApproveLimit selects the default.
func NewManager(l ledger.Appender, n notify.Notifier, autoApproveLimit float64) *Manager {
	if n == nil {
		n = notify.LogNotifier{}
	}
	if autoApproveLimit < 0 {
		autoApproveLimit = DefaultAutoApproveLimit
	}
	return &Manager{
		ledger:           l,
		notifier:         n,
		autoApproveLimit: autoApproveLimit,
		claims:           make(map[string]*Claim),
		preAuths:         make(map[string]*PreAuth),
		now:              time.Now,
	}
}

func (m *Manager) SubmitClaim(in ClaimInput) (Claim, ledger.Receipt, error) {
	if in.PolicyNumber == "" || in.PatientID == "" || in.HospitalID == "" || in.Diagnosis == "" {
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: policyNumber, patientId, hospitalId and diagnosis are required", ErrInvalid)
	}
	if in.Amount <= 0 {
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	c := &Claim{
		ID:           ids.NewEntityID("CLM"),
		PolicyNumber: in.PolicyNumber,
		PatientID:    in.PatientID,
		HospitalID:   in.HospitalID,
		Amount:       in.Amount,
		Diagnosis:    in.Diagnosis,
		RecordIDs:    append([]string{}, in.RecordIDs...),
		Status:       ClaimSubmitted,
		SubmittedAt:  m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    "hospital:" + in.HospitalID,
		Action:   ActionClaimSubmit,
		RecordID: c.ID,
		Details: map[string]any{
			"policyNumber": in.PolicyNumber,
			"patientId":    in.PatientID,
			"amount":       in.Amount,
			"recordIds":    c.RecordIDs,
		},
	})
	if err != nil {
		return Claim{}, ledger.Receipt{}, err
	}
	c.TxIDs = []string{receipt.TxID}
	m.claims[c.ID] = c
	return c.clone(), receipt, nil
}

// ReviewClaim approves or rejects a submitted claim and notifies the hospital.
func (m *Manager) ReviewClaim(id string, in ReviewInput) (Claim, ledger.Receipt, error) {
	if in.Reviewer == "" {
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: reviewer is required", ErrInvalid)
	}
	if in.Decision != Approve && in.Decision != Reject {
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: decision must be approve or reject", ErrInvalid)
	}
	if in.ApprovedAmount < 0 {
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: approved amount must not be negative", ErrInvalid)
	}

	m.mu.Lock()
	c, ok := m.claims[id]
	if !ok {
		m.mu.Unlock()
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if c.Status != ClaimSubmitted {
		m.mu.Unlock()
		return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: claim %s is already %s", ErrConflict, id, c.Status)
	}
	status, approved := ClaimRejected, 0.0
	if in.Decision == Approve {
		status, approved = ClaimApproved, in.ApprovedAmount
		if approved == 0 {
			approved = c.Amount
		}
		if approved > c.Amount {
			m.mu.Unlock()
			return Claim{}, ledger.Receipt{}, fmt.Errorf("%w: approved amount exceeds claimed amount", ErrInvalid)
		}
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    in.Reviewer,
		Action:   ActionClaimReview,
		RecordID: id,
		Details: map[string]any{
			"decision":       string(in.Decision),
			"status":         string(status),
			"approvedAmount": approved,
			"note":           in.Note,
		},
	})
	if err != nil {
		m.mu.Unlock()
		return Claim{}, ledger.Receipt{}, err
	}
	at := m.now().UTC()
	c.Status = status
	c.ApprovedAmount = approved
	c.Reviewer = in.Reviewer
	c.ReviewNote = in.Note
	c.ReviewedAt = &at
	c.TxIDs = append(c.TxIDs, receipt.TxID)
	out := c.clone()
	m.mu.Unlock()

	m.notifier.Notify(notify.Notification{
		Type:      notify.NotifyHospital,
		Recipient: out.HospitalID,
		Subject:   "claim_" + string(status),
		Reference: out.ID,
		Body:      fmt.Sprintf("Claim %s was %s (approved amount %.2f)", out.ID, status, approved),
	})
	return out, receipt, nil
}

// RequestPreAuth is approved immediately when the estimate is within the
// auto-approve limit, otherwise left for review.
func (m *Manager) RequestPreAuth(in PreAuthInput) (PreAuth, ledger.Receipt, error) {
	if in.PatientID == "" || in.HospitalID == "" || in.Procedure == "" {
		return PreAuth{}, ledger.Receipt{}, fmt.Errorf("%w: patientId, hospitalId and procedure are required", ErrInvalid)
	}
	if in.EstimatedCost <= 0 {
		return PreAuth{}, ledger.Receipt{}, fmt.Errorf("%w: estimated cost must be positive", ErrInvalid)
	}
	status := PreAuthPendingReview
	if in.EstimatedCost <= m.autoApproveLimit {
		status = PreAuthApproved
	}
	p := &PreAuth{
		ID:            ids.NewEntityID("PA"),
		PatientID:     in.PatientID,
		HospitalID:    in.HospitalID,
		Procedure:     in.Procedure,
		EstimatedCost: in.EstimatedCost,
		Status:        status,
		RequestedAt:   m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    "hospital:" + in.HospitalID,
		Action:   ActionPreAuth,
		RecordID: p.ID,
		Details: map[string]any{
			"patientId":     in.PatientID,
			"procedure":     in.Procedure,
			"estimatedCost": in.EstimatedCost,
			"status":        string(status),
		},
	})
	if err != nil {
		return PreAuth{}, ledger.Receipt{}, err
	}
	p.TxID = receipt.TxID
	m.preAuths[p.ID] = p
	return *p, receipt, nil
}

func (m *Manager) GetClaim(id string) (Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return Claim{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

// ListClaims returns claims oldest first, filtered by patient when patientID
// is set.
func (m *Manager) ListClaims(patientID string) []Claim {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Claim{}
	for _, c := range m.claims {
		if patientID == "" || c.PatientID == patientID {
			out = append(out, c.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) GetPreAuth(id string) (PreAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.preAuths[id]
	if !ok {
		return PreAuth{}, fmt.Errorf("%w: pre-authorization %s", ErrNotFound, id)
	}
	return *p, nil
}
