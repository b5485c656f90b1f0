package server

import (
	"net/http"
	"time"

	"arogyarakshak/core"
)

// RegisterKeyAPI registers keypair management and signature verification.
func RegisterKeyAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("POST /api/keys/{orgId}", s.handleGenerateKey)
	mux.HandleFunc("GET /api/keys/{orgId}", s.handleGetKey)
	mux.HandleFunc("POST /api/signatures/verify", s.handleVerifySignature)
}

type publicKeyResponse struct {
	OrgID     string    `json:"orgId"`
	PublicKey string    `json:"publicKey"`
	CreatedAt time.Time `json:"createdAt"`
}

func publicKey(kp core.KeyPair) publicKeyResponse {
	return publicKeyResponse{OrgID: kp.OrgID, PublicKey: kp.PublicKey, CreatedAt: kp.CreatedAt}
}

// handleGenerateKey creates or replaces an org's keypair. Only the public key
// leaves the server.
func (s *Server) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	kp, err := s.Keys.Generate(r.PathValue("orgId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"key": publicKey(kp)})
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	kp, err := s.Keys.Lookup(r.PathValue("orgId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"key": publicKey(kp)})
}

// handleVerifySignature checks a signed payload. With orgId the signer key
// must also belong to that org.
func (s *Server) handleVerifySignature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID  string             `json:"orgId"`
		Signed core.SignedPayload `json:"signed"`
	}
	if err := s.decode(r, "signature_verify", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var v core.Verification
	if req.OrgID != "" {
		v = s.Verifier.VerifyFor(req.OrgID, req.Signed)
	} else {
		v = core.Check(req.Signed)
	}
	ok(w, http.StatusOK, map[string]any{"verification": v, "verified": core.IsVerified(v)})
}
