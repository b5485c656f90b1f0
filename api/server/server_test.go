package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arogyarakshak/core"
	"arogyarakshak/core/asha"
	"arogyarakshak/core/audit"
	"arogyarakshak/core/auth"
	"arogyarakshak/core/compliance"
	"arogyarakshak/core/explorer"
	"arogyarakshak/core/insurance"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/notify"
	"arogyarakshak/core/qrcard"
	"arogyarakshak/core/records"
	"arogyarakshak/core/validation"
	"arogyarakshak/core/wallet"
)

func newTestServer(t *testing.T, configure func(*Server)) *Server {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	l, err := ledger.Open(ledger.Options{Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	ks, err := wallet.NewFileKeyStore(t.TempDir(), nil)
	require.NoError(t, err)
	verifier := wallet.NewVerifier(ks)
	v, err := validation.NewValidator(nil)
	require.NoError(t, err)
	out := &notify.Outbox{}

	s := &Server{
		Ledger:     l,
		Records:    records.NewManager(l, ks, verifier, audit.Discard{}),
		Claims:     insurance.NewManager(l, out, insurance.DefaultAutoApproveLimit),
		Compliance: compliance.NewManager(l),
		Cards:      qrcard.NewManager(l, ks, verifier),
		ASHA:       asha.NewManager(l, out, time.Minute),
		Explorer:   explorer.New(l, ks, "system:node", "arogya-test"),
		Keys:       ks,
		Verifier:   verifier,
		Validator:  v,
		Logger:     quiet,
	}
	if configure != nil {
		configure(s)
	}
	return s
}

type response struct {
	Code int
	Body map[string]any
	Raw  string
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	res := response{Code: rec.Code, Raw: rec.Body.String()}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &res.Body)
	}
	return res
}

func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		require.True(t, ok, "no object at %s", p)
		cur = obj[p]
	}
	return cur
}

func TestProbes(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	res := do(t, h, http.MethodGet, "/health/liveness", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["alive"])

	res = do(t, h, http.MethodGet, "/health/readiness", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["ready"])

	res = do(t, h, http.MethodGet, "/status", nil)
	assert.Equal(t, "healthy", res.Body["status"])
	assert.Equal(t, float64(1), res.Body["block_height"])

	res = do(t, h, http.MethodGet, "/nodehealth", nil)
	assert.Equal(t, "ready", field(t, res.Body, "metrics", "ledger_state"))

	require.NoError(t, s.Ledger.Close())
	res = do(t, h, http.MethodGet, "/health/readiness", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestRecordFlow(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	res := do(t, h, http.MethodPost, "/api/records", map[string]any{
		"patientId": "P1", "doctorId": "D1", "hospitalId": "H1",
		"recordType": "lab_report", "title": "CBC", "data": map[string]any{"hb": 13.2},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	assert.Equal(t, true, res.Body["success"])
	assert.Equal(t, "active", field(t, res.Body, "record", "status"))
	assert.Equal(t, "verified", field(t, res.Body, "record", "verification", "status"))
	id := field(t, res.Body, "record", "id").(string)

	res = do(t, h, http.MethodPost, "/api/records/"+id+"/endorse", map[string]any{"by": "doctor:D2"})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	res = do(t, h, http.MethodPost, "/api/records/"+id+"/endorse", map[string]any{"by": "doctor:D2"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = do(t, h, http.MethodPost, "/api/records/"+id+"/feedback", map[string]any{"by": "patient:P1", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.NotEmpty(t, res.Body["fields"])

	res = do(t, h, http.MethodGet, "/api/records?patientId=P1", nil)
	assert.Equal(t, float64(1), res.Body["count"])

	res = do(t, h, http.MethodGet, "/api/records/REC-missing", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.NotEmpty(t, res.Body["error"])
}

func TestMalformedAndInvalidBodies(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	res := do(t, h, http.MethodPost, "/api/records", "{not json")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body["error"], "malformed JSON")

	res = do(t, h, http.MethodPost, "/api/records", map[string]any{"patientId": "P1", "recordType": "horoscope"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.NotContains(t, res.Raw, "horoscope", "submitted values are not echoed")

	res = do(t, h, http.MethodGet, "/api/records", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestClaimAndPreAuth(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	res := do(t, h, http.MethodPost, "/api/insurance/claims", map[string]any{
		"policyNumber": "POL-1", "patientId": "P1", "hospitalId": "H1", "amount": 1200, "diagnosis": "fracture",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	id := field(t, res.Body, "claim", "id").(string)

	res = do(t, h, http.MethodPost, "/api/insurance/claims/"+id+"/review", map[string]any{"reviewer": "insurer:I1", "decision": "approve"})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, "approved", field(t, res.Body, "claim", "status"))
	assert.Equal(t, float64(1200), field(t, res.Body, "claim", "approvedAmount"))

	res = do(t, h, http.MethodPost, "/api/insurance/claims/"+id+"/review", map[string]any{"reviewer": "insurer:I1", "decision": "reject"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = do(t, h, http.MethodPost, "/api/insurance/preauth", map[string]any{
		"patientId": "P1", "hospitalId": "H1", "procedure": "MRI", "estimatedCost": 80000,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	assert.Equal(t, "pending_review", field(t, res.Body, "preAuth", "status"))
}

func TestASHAOTPOverHTTP(t *testing.T) {
	h := newTestServer(t, func(s *Server) { s.ExposeOTP = true }).Handler()

	res := do(t, h, http.MethodPost, "/api/asha/workers", map[string]any{
		"name": "Sunita", "phone": "9876543210", "village": "Rampur", "district": "Sitapur",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	id := field(t, res.Body, "worker", "id").(string)

	res = do(t, h, http.MethodPost, "/api/asha/otp/request", map[string]any{"workerId": id})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	code, _ := res.Body["otp"].(string)
	require.Len(t, code, 6)

	res = do(t, h, http.MethodPost, "/api/asha/otp/verify", map[string]any{"workerId": id, "code": code})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, "verified", res.Body["result"])

	res = do(t, h, http.MethodPost, "/api/asha/workers/"+id+"/activities", map[string]any{"type": "home_visit"})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)

	res = do(t, h, http.MethodGet, "/api/asha/workers/"+id, nil)
	assert.Equal(t, float64(1), field(t, res.Body, "summary", "totalActivities"))
}

func TestOTPHiddenByDefault(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	res := do(t, h, http.MethodPost, "/api/asha/workers", map[string]any{
		"name": "Asha", "phone": "9123456780", "village": "V", "district": "D",
	})
	id := field(t, res.Body, "worker", "id").(string)
	res = do(t, h, http.MethodPost, "/api/asha/otp/request", map[string]any{"workerId": id})
	require.Equal(t, http.StatusOK, res.Code)
	_, exposed := res.Body["otp"]
	assert.False(t, exposed)
}

func TestComplianceAndQR(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	res := do(t, h, http.MethodPost, "/api/compliance/scores", map[string]any{
		"entityId": "hospital:H1", "dataSecurity": 95, "consentManagement": 95, "auditTrail": 95, "recordAccuracy": 95,
	})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, "gold", field(t, res.Body, "compliance", "badge"))

	res = do(t, h, http.MethodGet, "/api/compliance/leaderboard?limit=5", nil)
	assert.Len(t, res.Body["leaderboard"], 1)

	res = do(t, h, http.MethodPost, "/api/qr/cards", map[string]any{"patientId": "P1", "issuerOrg": "hospital:H1", "bloodGroup": "O+"})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	token := field(t, res.Body, "card", "token").(string)
	cardID := field(t, res.Body, "card", "id").(string)

	res = do(t, h, http.MethodPost, "/api/qr/scan", map[string]any{"token": token, "scannedBy": "staff:S1"})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, true, field(t, res.Body, "scan", "valid"))

	res = do(t, h, http.MethodPost, "/api/qr/cards/"+cardID+"/revoke", map[string]any{"reason": "lost"})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	res = do(t, h, http.MethodPost, "/api/qr/cards/"+cardID+"/update", map[string]any{"bloodGroup": "A+"})
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()
	for i := 0; i < 3; i++ {
		_, err := s.Ledger.AppendTx(ledger.TxInput{Actor: "doctor:D1", Action: "RECORD_ADD", RecordID: "REC-1"})
		require.NoError(t, err)
	}

	res := do(t, h, http.MethodGet, "/api/ledger/transactions?actor=doctor:D1&limit=2", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, float64(2), res.Body["count"])

	res = do(t, h, http.MethodGet, "/api/ledger/transactions?limit=100000", nil)
	assert.Equal(t, float64(maxTxLimit), res.Body["limit"])

	res = do(t, h, http.MethodGet, "/api/ledger/transactions?from=2000-01-01&to=2999-12-31", nil)
	assert.Equal(t, float64(4), res.Body["count"])

	res = do(t, h, http.MethodGet, "/api/ledger/transactions?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, h, http.MethodGet, "/api/ledger/verify", nil)
	assert.Equal(t, true, field(t, res.Body, "integrity", "valid"))

	res = do(t, h, http.MethodGet, "/api/ledger/stats", nil)
	assert.Equal(t, float64(4), field(t, res.Body, "stats", "totalBlocks"))

	res = do(t, h, http.MethodGet, "/api/ledger/export", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, strings.HasPrefix(res.Raw, strings.Join(ledger.CSVHeader, ",")))
	assert.Equal(t, 5, strings.Count(res.Raw, "\n"))
}

func TestExplorerAndFlags(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()
	r, err := s.Ledger.AppendTx(ledger.TxInput{Actor: "hospital:H1", Action: "CLAIM_SUBMIT", RecordID: "CLM-1"})
	require.NoError(t, err)

	res := do(t, h, http.MethodGet, "/api/explorer/search?q="+r.TxID, nil)
	assert.Equal(t, float64(1), res.Body["count"])

	res = do(t, h, http.MethodGet, "/api/explorer/blocks/1", nil)
	assert.Equal(t, r.BlockHash, field(t, res.Body, "block", "blockHash"))
	res = do(t, h, http.MethodGet, "/api/explorer/blocks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, h, http.MethodGet, "/api/explorer/network", nil)
	assert.Equal(t, "arogya-test", field(t, res.Body, "network", "chainId"))

	res = do(t, h, http.MethodPost, "/api/audit/flag", map[string]any{"txId": r.TxID, "auditor": "auditor:A1", "reason": "odd", "severity": "high"})
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	res = do(t, h, http.MethodPost, "/api/audit/flag", map[string]any{"txId": strings.Repeat("0", 32), "reason": "odd", "severity": "low"})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = do(t, h, http.MethodGet, "/api/audit/flags", nil)
	assert.Equal(t, float64(1), res.Body["count"])
}

func TestKeysAndSignatures(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	res := do(t, h, http.MethodPost, "/api/keys/hospital:H9", nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	assert.NotEmpty(t, field(t, res.Body, "key", "publicKey"))
	assert.NotContains(t, res.Raw, "privateKey")

	res = do(t, h, http.MethodPost, "/api/keys/bad%20id", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	kp, err := core.GenerateKeypair("lab:L1")
	require.NoError(t, err)
	signed, err := core.SignWith(kp, map[string]any{"result": "negative", "n": 3})
	require.NoError(t, err)

	res = do(t, h, http.MethodPost, "/api/signatures/verify", map[string]any{"signed": signed})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, true, res.Body["verified"])

	signed.PayloadHash = strings.Repeat("0", 64)
	res = do(t, h, http.MethodPost, "/api/signatures/verify", map[string]any{"signed": signed})
	require.Equal(t, http.StatusOK, res.Code, res.Raw)
	assert.Equal(t, false, res.Body["verified"])
	assert.Equal(t, "payload hash mismatch", field(t, res.Body, "verification", "reason"))
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	secret := "test-secret"
	h := newTestServer(t, func(s *Server) {
		s.Authorizer = auth.NewAuthorizer(secret, "arogya-rakshak", nil)
	}).Handler()

	res := do(t, h, http.MethodGet, "/api/ledger/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = do(t, h, http.MethodGet, "/health/liveness", nil)
	assert.Equal(t, http.StatusOK, res.Code, "probes are open")

	token, err := auth.IssueToken([]byte(secret), "arogya-rakshak", "A1", "auditor", time.Hour)
	require.NoError(t, err)
	res = do(t, h, http.MethodGet, "/api/ledger/stats", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, res.Code)

	// the token's actor overrides the body
	res = do(t, h, http.MethodPost, "/api/compliance/violations",
		map[string]any{"entityId": "hospital:H1", "severity": "low", "description": "late audit", "reportedBy": "auditor:someone-else"},
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, res.Code, res.Raw)
	assert.Equal(t, "auditor:A1", field(t, res.Body, "violation", "reportedBy"))
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, func(s *Server) {
		s.Limiter = NewRateLimiter(3, log.New(io.Discard, "", 0))
	}).Handler()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/ledger/stats", nil).Code)
	}
	res := do(t, h, http.MethodGet, "/api/ledger/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "rate limit exceeded", res.Body["error"])

	// health endpoints stay reachable for a banned client
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/liveness", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", nil).Code)
}
