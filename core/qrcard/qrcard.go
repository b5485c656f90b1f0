// Package qrcard issues signed emergency health cards. The QR code carries
// an opaque token that binds a scan to one version of the card.
package qrcard

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"arogyarakshak/core"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/wallet"
	"arogyarakshak/types/ids"
)

var (
	ErrNotFound = errors.New("card not found")
	ErrInvalid  = errors.New("invalid card request")
	ErrConflict = errors.New("card conflict")
)

const (
	ActionGenerate = "QR_GENERATE"
	ActionScan     = "QR_SCAN"
	ActionUpdate   = "QR_UPDATE"
	ActionRevoke   = "QR_REVOKE"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Card struct {
	ID               string             `json:"id"`
	PatientID        string             `json:"patientId"`
	IssuerOrg        string             `json:"issuerOrg"`
	BloodGroup       string             `json:"bloodGroup,omitempty"`
	Allergies        []string           `json:"allergies"`
	Conditions       []string           `json:"conditions"`
	EmergencyContact Contact            `json:"emergencyContact"`
	Version          int                `json:"version"`
	Status           Status             `json:"status"`
	RevokedReason    string             `json:"revokedReason,omitempty"`
	Signed           core.SignedPayload `json:"signed"`
	Token            string             `json:"token"`
	TxIDs            []string           `json:"txIds"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

func (c *Card) clone() Card {
	out := *c
	out.Allergies = append([]string{}, c.Allergies...)
	out.Conditions = append([]string{}, c.Conditions...)
	out.TxIDs = append([]string{}, c.TxIDs...)
	return out
}

// content is what the issuer signs.
func (c *Card) content() map[string]any {
	return map[string]any{
		"cardId":           c.ID,
		"patientId":        c.PatientID,
		"issuerOrg":        c.IssuerOrg,
		"bloodGroup":       c.BloodGroup,
		"allergies":        c.Allergies,
		"conditions":       c.Conditions,
		"emergencyContact": c.EmergencyContact,
		"version":          c.Version,
	}
}

// token is the QR payload.
type token struct {
	CardID      string `json:"cardId"`
	PayloadHash string `json:"payloadHash"`
	Signature   string `json:"signature"`
	Timestamp   int64  `json:"timestamp"`
}

func encodeToken(c *Card) (string, error) {
	raw, err := json.Marshal(token{
		CardID:      c.ID,
		PayloadHash: c.Signed.PayloadHash,
		Signature:   c.Signed.Signature,
		Timestamp:   c.Signed.Timestamp,
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeToken(s string) (token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return token{}, err
	}
	var t token
	if err := json.Unmarshal(raw, &t); err != nil {
		return token{}, err
	}
	if t.CardID == "" {
		return token{}, errors.New("token has no card id")
	}
	return t, nil
}

type GenerateInput struct {
	PatientID        string
	IssuerOrg        string
	BloodGroup       string
	Allergies        []string
	Conditions       []string
	EmergencyContact Contact
}

// UpdateInput changes the fields that are set.
type UpdateInput struct {
	BloodGroup       *string
	Allergies        []string
	Conditions       []string
	EmergencyContact *Contact
}

// ScanResult is the outcome of a scan. Card is set for known cards.
type ScanResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Card   *Card  `json:"card,omitempty"`
	TxID   string `json:"txId,omitempty"`
}

type Manager struct {
	mu       sync.RWMutex
	ledger   ledger.Appender
	keys     wallet.KeyStore
	verifier wallet.SignatureVerifier
	cards    map[string]*Card
	now      func() time.Time
}

func NewManager(l ledger.Appender, keys wallet.KeyStore, v wallet.SignatureVerifier) *Manager {
	return &Manager{ledger: l, keys: keys, verifier: v, cards: make(map[string]*Card), now: time.Now}
}

func (m *Manager) sign(c *Card) error {
	kp, err := m.keys.GetOrCreate(c.IssuerOrg)
	if err != nil {
		return err
	}
	signed, err := core.SignWith(kp, c.content())
	if err != nil {
		return err
	}
	c.Signed = signed
	c.Token, err = encodeToken(c)
	return err
}

// Generate issues version 1 of a card signed by the issuer.
func (m *Manager) Generate(in GenerateInput) (Card, ledger.Receipt, error) {
	if in.PatientID == "" {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: patientId is required", ErrInvalid)
	}
	if !wallet.ValidOrgID(in.IssuerOrg) {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: bad issuer org %q", ErrInvalid, in.IssuerOrg)
	}
	now := m.now().UTC()
	c := &Card{
		ID:               ids.NewEntityID("QR"),
		PatientID:        in.PatientID,
		IssuerOrg:        in.IssuerOrg,
		BloodGroup:       in.BloodGroup,
		Allergies:        append([]string{}, in.Allergies...),
		Conditions:       append([]string{}, in.Conditions...),
		EmergencyContact: in.EmergencyContact,
		Version:          1,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.sign(c); err != nil {
		return Card{}, ledger.Receipt{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    in.IssuerOrg,
		Action:   ActionGenerate,
		RecordID: c.ID,
		Details: map[string]any{
			"patientId":   in.PatientID,
			"version":     c.Version,
			"payloadHash": c.Signed.PayloadHash,
		},
	})
	if err != nil {
		return Card{}, ledger.Receipt{}, err
	}
	c.TxIDs = []string{receipt.TxID}
	m.cards[c.ID] = c
	return c.clone(), receipt, nil
}

// Scan checks a token against the current card. Malformed tokens and unknown
// cards are reported as invalid without touching the ledger; every scan of a
// known card is recorded.
func (m *Manager) Scan(tok, scannedBy string) (ScanResult, error) {
	t, err := decodeToken(tok)
	if err != nil {
		return ScanResult{Reason: "malformed token"}, nil
	}
	if scannedBy == "" {
		scannedBy = "staff:unknown"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[t.CardID]
	if !ok {
		return ScanResult{Reason: "unknown card"}, nil
	}
	res := ScanResult{Valid: true}
	switch {
	case c.Status == StatusRevoked:
		res = ScanResult{Reason: "card revoked"}
	case t.PayloadHash != c.Signed.PayloadHash || t.Signature != c.Signed.Signature || t.Timestamp != c.Signed.Timestamp:
		res = ScanResult{Reason: "token does not match the current card version"}
	default:
		if u, ok := m.verifier.VerifyFor(c.IssuerOrg, c.Signed).(core.Unverified); ok {
			res = ScanResult{Reason: u.Reason}
		}
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    scannedBy,
		Action:   ActionScan,
		RecordID: c.ID,
		Details: map[string]any{
			"valid":   res.Valid,
			"reason":  res.Reason,
			"version": c.Version,
		},
	})
	if err != nil {
		return ScanResult{}, err
	}
	c.TxIDs = append(c.TxIDs, receipt.TxID)
	card := c.clone()
	res.Card = &card
	res.TxID = receipt.TxID
	return res, nil
}

// Update re-signs the card with the changed fields as a new version.
func (m *Manager) Update(cardID string, in UpdateInput, by string) (Card, ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[cardID]
	if !ok {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	if c.Status == StatusRevoked {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: card %s is revoked", ErrConflict, cardID)
	}
	if by == "" {
		by = c.IssuerOrg
	}
	next := c.clone()
	var changed []string
	if in.BloodGroup != nil {
		next.BloodGroup = *in.BloodGroup
		changed = append(changed, "bloodGroup")
	}
	if in.Allergies != nil {
		next.Allergies = append([]string{}, in.Allergies...)
		changed = append(changed, "allergies")
	}
	if in.Conditions != nil {
		next.Conditions = append([]string{}, in.Conditions...)
		changed = append(changed, "conditions")
	}
	if in.EmergencyContact != nil {
		next.EmergencyContact = *in.EmergencyContact
		changed = append(changed, "emergencyContact")
	}
	if len(changed) == 0 {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: nothing to update", ErrInvalid)
	}
	next.Version++
	if err := m.sign(&next); err != nil {
		return Card{}, ledger.Receipt{}, err
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    by,
		Action:   ActionUpdate,
		RecordID: cardID,
		Details: map[string]any{
			"version":     next.Version,
			"fields":      changed,
			"payloadHash": next.Signed.PayloadHash,
		},
	})
	if err != nil {
		return Card{}, ledger.Receipt{}, err
	}
	next.UpdatedAt = m.now().UTC()
	next.TxIDs = append(next.TxIDs, receipt.TxID)
	*c = next
	return c.clone(), receipt, nil
}

// Revoke permanently invalidates the card.
func (m *Manager) Revoke(cardID, reason, by string) (Card, ledger.Receipt, error) {
	if reason == "" {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: reason is required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[cardID]
	if !ok {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	if c.Status == StatusRevoked {
		return Card{}, ledger.Receipt{}, fmt.Errorf("%w: card %s is already revoked", ErrConflict, cardID)
	}
	if by == "" {
		by = c.IssuerOrg
	}
	receipt, err := m.ledger.AppendTx(ledger.TxInput{
		Actor:    by,
		Action:   ActionRevoke,
		RecordID: cardID,
		Details:  map[string]any{"reason": reason, "version": c.Version},
	})
	if err != nil {
		return Card{}, ledger.Receipt{}, err
	}
	c.Status = StatusRevoked
	c.RevokedReason = reason
	c.UpdatedAt = m.now().UTC()
	c.TxIDs = append(c.TxIDs, receipt.TxID)
	return c.clone(), receipt, nil
}

func (m *Manager) Get(cardID string) (Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[cardID]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	return c.clone(), nil
}
