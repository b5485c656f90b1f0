package qrcard

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arogyarakshak/core"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/wallet"
)

func newManager(t *testing.T) (*Manager, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(ledger.Options{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	ks, err := wallet.NewFileKeyStore(t.TempDir(), nil)
	require.NoError(t, err)
	return NewManager(l, ks, wallet.NewVerifier(ks)), l
}

func generate(t *testing.T, m *Manager) Card {
	t.Helper()
	c, _, err := m.Generate(GenerateInput{
		PatientID:        "P1",
		IssuerOrg:        "hospital:H1",
		BloodGroup:       "O+",
		Allergies:        []string{"penicillin"},
		EmergencyContact: Contact{Name: "Ravi", Phone: "9876543210"},
	})
	require.NoError(t, err)
	return c
}

func TestGenerateAndScan(t *testing.T) {
	m, l := newManager(t)
	c := generate(t, m)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, StatusActive, c.Status)
	assert.True(t, core.Verify(c.Signed))
	assert.NotContains(t, c.Token, "=")

	res, err := m.Scan(c.Token, "staff:S1")
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Reason)
	require.NotNil(t, res.Card)
	assert.Equal(t, c.ID, res.Card.ID)

	actions := []string{}
	for _, tx := range l.TransactionsByRecordID(c.ID) {
		actions = append(actions, tx.Action)
	}
	assert.Equal(t, []string{ActionGenerate, ActionScan}, actions)
}

func TestScanInvalidTokens(t *testing.T) {
	m, l := newManager(t)
	c := generate(t, m)
	before := l.Height()

	res, err := m.Scan("%%%not-base64", "staff:S1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "malformed token", res.Reason)

	ghost, _ := json.Marshal(token{CardID: "QR-ghost"})
	res, err = m.Scan(base64.RawURLEncoding.EncodeToString(ghost), "staff:S1")
	require.NoError(t, err)
	assert.Equal(t, "unknown card", res.Reason)
	assert.Equal(t, before, l.Height(), "unknown cards are not recorded")

	tampered, _ := json.Marshal(token{CardID: c.ID, PayloadHash: c.Signed.PayloadHash, Signature: "AAAA", Timestamp: c.Signed.Timestamp})
	res, err = m.Scan(base64.RawURLEncoding.EncodeToString(tampered), "staff:S1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "token does not match the current card version", res.Reason)
	assert.Equal(t, before+1, l.Height())
}

func TestUpdateInvalidatesOldToken(t *testing.T) {
	m, _ := newManager(t)
	c := generate(t, m)

	bg := "A+"
	updated, _, err := m.Update(c.ID, UpdateInput{BloodGroup: &bg, Conditions: []string{"asthma"}}, "hospital:H1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "A+", updated.BloodGroup)
	assert.NotEqual(t, c.Token, updated.Token)

	old, err := m.Scan(c.Token, "staff:S1")
	require.NoError(t, err)
	assert.False(t, old.Valid)

	fresh, err := m.Scan(updated.Token, "staff:S1")
	require.NoError(t, err)
	assert.True(t, fresh.Valid)

	_, _, err = m.Update(c.ID, UpdateInput{}, "")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestRevoke(t *testing.T) {
	m, _ := newManager(t)
	c := generate(t, m)

	revoked, _, err := m.Revoke(c.ID, "card lost", "patient:P1")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)

	res, err := m.Scan(c.Token, "staff:S1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "card revoked", res.Reason)

	bg := "B+"
	_, _, err = m.Update(c.ID, UpdateInput{BloodGroup: &bg}, "")
	assert.True(t, errors.Is(err, ErrConflict))
	_, _, err = m.Revoke(c.ID, "again", "")
	assert.True(t, errors.Is(err, ErrConflict))
	_, _, err = m.Revoke("QR-none", "x", "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGenerateValidation(t *testing.T) {
	m, _ := newManager(t)
	_, _, err := m.Generate(GenerateInput{IssuerOrg: "hospital:H1"})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, _, err = m.Generate(GenerateInput{PatientID: "P1", IssuerOrg: "../keys"})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = m.Get("QR-none")
	assert.True(t, errors.Is(err, ErrNotFound))
}
