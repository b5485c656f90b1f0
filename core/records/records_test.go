package records

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arogyarakshak/core"
	"arogyarakshak/core/audit"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/wallet"
)

type fixture struct {
	m      *Manager
	ledger *ledger.Ledger
	keys   *wallet.FileKeyStore
	audit  *audit.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	l, err := ledger.Open(ledger.Options{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	ks, err := wallet.NewFileKeyStore(t.TempDir(), nil)
	require.NoError(t, err)
	rec := &audit.Recorder{}
	return fixture{m: NewManager(l, ks, wallet.NewVerifier(ks), rec), ledger: l, keys: ks, audit: rec}
}

func validInput() AddInput {
	return AddInput{
		PatientID:  "P1",
		DoctorID:   "D1",
		HospitalID: "H1",
		RecordType: "lab_report",
		Title:      "Complete blood count",
		Data:       map[string]any{"hb": 13.1},
	}
}

func TestAddSignsAndRecords(t *testing.T) {
	f := newFixture(t)

	rec, receipt, err := f.m.Add(validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)
	assert.True(t, core.IsVerified(rec.Verification))
	assert.True(t, core.Verify(rec.Signed))
	assert.Equal(t, uint64(1), receipt.BlockNo)
	assert.Equal(t, []string{receipt.TxID}, rec.TxIDs)

	txs := f.ledger.TransactionsByRecordID(rec.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, ActionAdd, txs[0].Action)
	assert.Equal(t, "doctor:D1", txs[0].Actor)
	assert.Equal(t, true, txs[0].Details["signatureVerified"])
	assert.Equal(t, rec.Signed.PayloadHash, txs[0].Details["payloadHash"])

	got, err := f.m.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, audit.ResultSuccess, f.audit.Events()[0].Result)
}

func TestUnverifiedRecordIsAdmittedAsDisputed(t *testing.T) {
	f := newFixture(t)
	kp, err := f.keys.GetOrCreate(HospitalOrg("H1"))
	require.NoError(t, err)

	signed, err := core.SignWith(kp, map[string]any{"title": "x-ray"})
	require.NoError(t, err)
	signed.Payload = map[string]any{"title": "x-ray (edited)"}

	in := validInput()
	in.Signed = &signed
	rec, _, err := f.m.Add(in)
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, rec.Status)
	assert.Equal(t, core.Unverified{Reason: "payload hash mismatch"}, rec.Verification)

	tx := f.ledger.TransactionsByRecordID(rec.ID)[0]
	assert.Equal(t, false, tx.Details["signatureVerified"])
	assert.Equal(t, "disputed", tx.Details["status"])

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ResultFailure, events[0].Result)
}

func TestForeignSignerIsDisputed(t *testing.T) {
	f := newFixture(t)
	other, err := f.keys.GetOrCreate(HospitalOrg("H2"))
	require.NoError(t, err)
	_, err = f.keys.GetOrCreate(HospitalOrg("H1"))
	require.NoError(t, err)

	signed, err := core.SignWith(other, map[string]any{"title": "scan"})
	require.NoError(t, err)
	in := validInput()
	in.Signed = &signed
	rec, _, err := f.m.Add(in)
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, rec.Status)
	assert.Equal(t, core.Unverified{Reason: "signer key does not match org"}, rec.Verification)
}

func TestReplayedSignatureOnOtherContentIsDisputed(t *testing.T) {
	f := newFixture(t)
	orig, _, err := f.m.Add(validInput())
	require.NoError(t, err)

	in := validInput()
	in.PatientID = "P2"
	in.Title = "Forged diagnosis"
	in.Data = map[string]any{"hiv": "positive"}
	in.Signed = &orig.Signed
	rec, _, err := f.m.Add(in)
	require.NoError(t, err)

	assert.Equal(t, StatusDisputed, rec.Status)
	assert.Equal(t, core.Unverified{Reason: "payload does not match record"}, rec.Verification)
	assert.Equal(t, "P1", rec.PatientID)
	assert.Equal(t, "Complete blood count", rec.Title)
	assert.Empty(t, f.m.ListByPatient("P2"))

	tx := f.ledger.TransactionsByRecordID(rec.ID)[0]
	assert.Equal(t, false, tx.Details["signatureVerified"])
	assert.Equal(t, "P1", tx.Details["patientId"])
}

func TestSignedPayloadBecomesRecordContent(t *testing.T) {
	f := newFixture(t)
	kp, err := f.keys.GetOrCreate(HospitalOrg("H1"))
	require.NoError(t, err)
	signed, err := core.SignWith(kp, map[string]any{
		"patientId":  "P7",
		"doctorId":   "D3",
		"hospitalId": "H1",
		"recordType": "prescription",
		"title":      "Amoxicillin 500mg",
		"data":       map[string]any{"days": 5},
	})
	require.NoError(t, err)

	rec, _, err := f.m.Add(AddInput{Signed: &signed})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)
	assert.True(t, core.IsVerified(rec.Verification))
	assert.Equal(t, "P7", rec.PatientID)
	assert.Equal(t, "D3", rec.DoctorID)
	assert.Equal(t, "prescription", rec.RecordType)
	assert.Equal(t, "Amoxicillin 500mg", rec.Title)
	assert.Equal(t, map[string]any{"days": 5}, rec.Data)

	// A matching request body is accepted as well.
	rec, _, err = f.m.Add(AddInput{
		PatientID:  "P7",
		DoctorID:   "D3",
		HospitalID: "H1",
		RecordType: "prescription",
		Title:      "Amoxicillin 500mg",
		Data:       map[string]any{"days": 5.0},
		Signed:     &signed,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)
}

func TestSignedPayloadForOtherHospitalIsDisputed(t *testing.T) {
	f := newFixture(t)
	orig, _, err := f.m.Add(validInput())
	require.NoError(t, err)

	in := validInput()
	in.HospitalID = "H2"
	in.Signed = &orig.Signed
	rec, _, err := f.m.Add(in)
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, rec.Status)
	assert.Equal(t, "H1", rec.HospitalID)
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.RecordType = "horoscope"
	_, _, err := f.m.Add(in)
	assert.True(t, errors.Is(err, ErrInvalid))

	in = validInput()
	in.Title = ""
	_, _, err = f.m.Add(in)
	assert.True(t, errors.Is(err, ErrInvalid))

	in = validInput()
	in.HospitalID = "../../etc"
	_, _, err = f.m.Add(in)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, uint64(1), f.ledger.Height())
}

func TestDisputeEndorseFeedback(t *testing.T) {
	f := newFixture(t)
	rec, _, err := f.m.Add(validInput())
	require.NoError(t, err)

	_, _, err = f.m.Endorse(rec.ID, "doctor:D2", "agree")
	require.NoError(t, err)
	_, _, err = f.m.Endorse(rec.ID, "doctor:D2", "again")
	assert.True(t, errors.Is(err, ErrConflict))

	_, _, err = f.m.Feedback(rec.ID, "patient:P1", 7, "")
	assert.True(t, errors.Is(err, ErrInvalid))
	_, _, err = f.m.Feedback(rec.ID, "patient:P1", 4, "helpful")
	require.NoError(t, err)

	disputed, receipt, err := f.m.Dispute(rec.ID, "patient:P1", "wrong patient")
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, disputed.Status)
	assert.Len(t, disputed.Endorsements, 1)
	assert.Len(t, disputed.Feedback, 1)
	assert.Len(t, disputed.Disputes, 1)
	assert.Len(t, disputed.TxIDs, 4)

	tx, err := f.ledger.Transaction(receipt.TxID)
	require.NoError(t, err)
	assert.Equal(t, ActionDispute, tx.Action)
	assert.Equal(t, rec.ID, tx.RecordID)
	assert.Len(t, f.ledger.TransactionsByRecordID(rec.ID), 4)

	_, _, err = f.m.Dispute("REC-missing", "patient:P1", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, _, err = f.m.Dispute(rec.ID, "", "x")
	assert.True(t, errors.Is(err, ErrInvalid))
}

type failingLedger struct{}

func (failingLedger) AppendTx(ledger.TxInput) (ledger.Receipt, error) {
	return ledger.Receipt{}, errors.New("disk full")
}

func TestLedgerFailureLeavesNoRecord(t *testing.T) {
	ks, err := wallet.NewFileKeyStore(t.TempDir(), nil)
	require.NoError(t, err)
	m := NewManager(failingLedger{}, ks, wallet.NewVerifier(ks), nil)

	_, _, err = m.Add(validInput())
	require.Error(t, err)
	assert.Empty(t, m.ListByPatient("P1"))
}

func TestListByPatientNewestFirst(t *testing.T) {
	f := newFixture(t)
	first, _, err := f.m.Add(validInput())
	require.NoError(t, err)
	second, _, err := f.m.Add(validInput())
	require.NoError(t, err)

	list := f.m.ListByPatient("P1")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Empty(t, f.m.ListByPatient("nobody"))
}
