// Package records manages signed medical records. Every mutation is
// recorded on the ledger.
package records

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"arogyarakshak/core"
	"arogyarakshak/core/audit"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/wallet"
	"arogyarakshak/types/ids"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrInvalid  = errors.New("invalid record request")
	ErrConflict = errors.New("record conflict")
)

// Ledger actions written by this package.
const (
	ActionAdd      = "RECORD_ADD"
	ActionDispute  = "RECORD_DISPUTE"
	ActionEndorse  = "RECORD_ENDORSE"
	ActionFeedback = "RECORD_FEEDBACK"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisputed Status = "disputed"
)

// RecordTypes lists the accepted record types.
var RecordTypes = map[string]bool{
	"prescription":      true,
	"lab_report":        true,
	"diagnosis":         true,
	"imaging":           true,
	"discharge_summary": true,
	"vaccination":       true,
	"consultation":      true,
}

type Endorsement struct {
	By   string    `json:"by"`
	Note string    `json:"note,omitempty"`
	At   time.Time `json:"at"`
}

type Feedback struct {
	By      string    `json:"by"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}

type Dispute struct {
	By     string    `json:"by"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type Record struct {
	ID           string             `json:"id"`
	PatientID    string             `json:"patientId"`
	DoctorID     string             `json:"doctorId"`
	HospitalID   string             `json:"hospitalId"`
	RecordType   string             `json:"recordType"`
	Title        string             `json:"title"`
	Data         map[string]any     `json:"data,omitempty"`
	Signed       core.SignedPayload `json:"signed"`
	Verification core.Verification  `json:"verification"`
	Status       Status             `json:"status"`
	Endorsements []Endorsement      `json:"endorsements"`
	Feedback     []Feedback         `json:"feedback"`
	Disputes     []Dispute          `json:"disputes"`
	TxIDs        []string           `json:"txIds"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func (r *Record) clone() Record {
	c := *r
	c.Endorsements = append([]Endorsement{}, r.Endorsements...)
	c.Feedback = append([]Feedback{}, r.Feedback...)
	c.Disputes = append([]Dispute{}, r.Disputes...)
	c.TxIDs = append([]string{}, r.TxIDs...)
	return c
}

// AddInput describes a new record. When Signed is nil the hospital's key
// signs the record content.
type AddInput struct {
	PatientID  string
	DoctorID   string
	HospitalID string
	RecordType string
	Title      string
	Data       map[string]any
	Signed     *core.SignedPayload
}

func recordContent(in AddInput) map[string]any {
	return map[string]any{
		"patientId":  in.PatientID,
		"doctorId":   in.DoctorID,
		"hospitalId": in.HospitalID,
		"recordType": in.RecordType,
		"title":      in.Title,
		"data":       in.Data,
	}
}

// adoptSignedContent makes the signed payload the record content. Request
// fields the payload omits are kept; any request field that disagrees with
// the payload, or a payload missing a record field, reports a mismatch.
func adoptSignedContent(in AddInput) (AddInput, bool) {
	payload, ok := in.Signed.Payload.(map[string]any)
	if !ok {
		return in, true
	}
	mismatch := false
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"patientId", &in.PatientID},
		{"doctorId", &in.DoctorID},
		{"hospitalId", &in.HospitalID},
		{"recordType", &in.RecordType},
		{"title", &in.Title},
	} {
		v, ok := payload[f.key].(string)
		if !ok {
			mismatch = true
			continue
		}
		if *f.dst != "" && *f.dst != v {
			mismatch = true
		}
		*f.dst = v
	}

	raw, present := payload["data"]
	data, isMap := raw.(map[string]any)
	switch {
	case !present:
		mismatch = true
	case raw != nil && !isMap:
		mismatch = true
	default:
		if in.Data != nil && !sameContent(in.Data, data) {
			mismatch = true
		}
		in.Data = data
	}
	return in, mismatch
}

func sameContent(a, b map[string]any) bool {
	ha, err := core.Hash(a)
	if err != nil {
		return false
	}
	hb, err := core.Hash(b)
	return err == nil && ha == hb
}

// HospitalOrg is the keystore org id of a hospital.
func HospitalOrg(hospitalID string) string { return "hospital:" + hospitalID }

type Manager struct {
	mu        sync.RWMutex
	ledger    ledger.Appender
	keys      wallet.KeyStore
	verifier  wallet.SignatureVerifier
	audit     audit.AuditLogger
	records   map[string]*Record
	byPatient map[string][]string
	now       func() time.Time
}

func NewManager(l ledger.Appender, keys wallet.KeyStore, v wallet.SignatureVerifier, a audit.AuditLogger) *Manager {
	if a == nil {
		a = audit.Discard{}
	}
	return &Manager{
		ledger:    l,
		keys:      keys,
		verifier:  v,
		audit:     a,
		records:   make(map[string]*Record),
		byPatient: make(map[string][]string),
		now:       time.Now,
	}
}

// Add signs (or accepts a pre-signed payload), verifies and stores a record.
// A record whose signature does not verify is still admitted, with status
// disputed.
func (m *Manager) Add(in AddInput) (Record, ledger.Receipt, error) {
	var mismatch bool
	if in.Signed != nil {
		in, mismatch = adoptSignedContent(in)
	}
	if in.PatientID == "" || in.DoctorID == "" || in.HospitalID == "" || in.Title == "" {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: patientId, doctorId, hospitalId and title are required", ErrInvalid)
	}
	if !RecordTypes[in.RecordType] {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: unknown record type %q", ErrInvalid, in.RecordType)
	}
	org := HospitalOrg(in.HospitalID)
	if !wallet.ValidOrgID(org) {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: bad hospital id", ErrInvalid)
	}

	var signed core.SignedPayload
	if in.Signed != nil {
		signed = *in.Signed
	} else {
		kp, err := m.keys.GetOrCreate(org)
		if err != nil {
			return Record{}, ledger.Receipt{}, err
		}
		signed, err = core.SignWith(kp, recordContent(in))
		if err != nil {
			return Record{}, ledger.Receipt{}, err
		}
	}
	verification := m.verifier.VerifyFor(org, signed)
	if mismatch && core.IsVerified(verification) {
		verification = core.Unverified{Reason: "payload does not match record"}
	}
	verified := core.IsVerified(verification)
	status := StatusActive
	event := audit.AuditEvent{EventType: "SignatureVerification", EntityID: org, Result: audit.ResultSuccess, Timestamp: m.now()}
	if u, ok := verification.(core.Unverified); ok {
		status = StatusDisputed
		event.Result = audit.ResultFailure
		event.Reason = u.Reason
	}
	m.audit.LogEvent(event)

	now := m.now().UTC()
	rec := &Record{
		ID:           ids.NewEntityID("REC"),
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
		HospitalID:   in.HospitalID,
		RecordType:   in.RecordType,
		Title:        in.Title,
		Data:         in.Data,
		Signed:       signed,
		Verification: verification,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    "doctor:" + in.DoctorID,
		Action:   ActionAdd,
		RecordID: rec.ID,
		Details: map[string]any{
			"patientId":         in.PatientID,
			"hospitalId":        in.HospitalID,
			"recordType":        in.RecordType,
			"payloadHash":       signed.PayloadHash,
			"signatureVerified": verified,
			"status":            string(status),
		},
	})
	if err != nil {
		return Record{}, ledger.Receipt{}, err
	}
	rec.TxIDs = append(rec.TxIDs, receipt.TxID)
	m.records[rec.ID] = rec
	m.byPatient[in.PatientID] = append(m.byPatient[in.PatientID], rec.ID)
	return rec.clone(), receipt, nil
}

// Dispute marks a record as disputed.
func (m *Manager) Dispute(id, by, reason string) (Record, ledger.Receipt, error) {
	if by == "" || reason == "" {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: by and reason are required", ErrInvalid)
	}
	return m.mutate(id, ledger.TxInput{Actor: by, Action: ActionDispute, Details: map[string]any{"reason": reason}},
		func(r *Record, at time.Time) error {
			r.Status = StatusDisputed
			r.Disputes = append(r.Disputes, Dispute{By: by, Reason: reason, At: at})
			return nil
		})
}

// Endorse adds an endorsement. Each endorser may endorse a record once.
func (m *Manager) Endorse(id, by, note string) (Record, ledger.Receipt, error) {
	if by == "" {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: by is required", ErrInvalid)
	}
	return m.mutate(id, ledger.TxInput{Actor: by, Action: ActionEndorse, Details: map[string]any{"note": note}},
		func(r *Record, at time.Time) error {
			for _, e := range r.Endorsements {
				if e.By == by {
					return fmt.Errorf("%w: %s already endorsed %s", ErrConflict, by, r.ID)
				}
			}
			r.Endorsements = append(r.Endorsements, Endorsement{By: by, Note: note, At: at})
			return nil
		})
}

// Feedback records a 1..5 rating.
func (m *Manager) Feedback(id, by string, rating int, comment string) (Record, ledger.Receipt, error) {
	if by == "" {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: by is required", ErrInvalid)
	}
	if rating < 1 || rating > 5 {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalid)
	}
	return m.mutate(id, ledger.TxInput{Actor: by, Action: ActionFeedback, Details: map[string]any{"rating": rating, "comment": comment}},
		func(r *Record, at time.Time) error {
			r.Feedback = append(r.Feedback, Feedback{By: by, Rating: rating, Comment: comment, At: at})
			return nil
		})
}

// mutate checks apply against a scratch copy, appends the ledger entry and
// only then commits the change.
func (m *Manager) mutate(id string, tx ledger.TxInput, apply func(*Record, time.Time) error) (Record, ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ledger.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := m.now().UTC()
	next := rec.clone()
	if err := apply(&next, now); err != nil {
		return Record{}, ledger.Receipt{}, err
	}
	tx.RecordID = id
	receipt, err := m.ledger.AppendTx(tx)
	if err != nil {
		return Record{}, ledger.Receipt{}, err
	}
	next.UpdatedAt = now
	next.TxIDs = append(next.TxIDs, receipt.TxID)
	*rec = next
	return rec.clone(), receipt, nil
}

func (m *Manager) Get(id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.clone(), nil
}

// ListByPatient returns a patient's records, newest first.
func (m *Manager) ListByPatient(patientID string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recIDs := m.byPatient[patientID]
	out := make([]Record, 0, len(recIDs))
	for i := len(recIDs) - 1; i >= 0; i-- {
		out = append(out, m.records[recIDs[i]].clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
