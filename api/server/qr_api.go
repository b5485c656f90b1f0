package server

import (
	"net/http"

	"arogyarakshak/core/qrcard"
)

// RegisterQRAPI registers the emergency QR card endpoints.
func RegisterQRAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("POST /api/qr/cards", s.handleGenerateCard)
	mux.HandleFunc("GET /api/qr/cards/{id}", s.handleGetCard)
	mux.HandleFunc("POST /api/qr/scan", s.handleScanCard)
	mux.HandleFunc("POST /api/qr/cards/{id}/update", s.handleUpdateCard)
	mux.HandleFunc("POST /api/qr/cards/{id}/revoke", s.handleRevokeCard)
}

func (s *Server) handleGenerateCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID        string         `json:"patientId"`
		IssuerOrg        string         `json:"issuerOrg"`
		BloodGroup       string         `json:"bloodGroup"`
		Allergies        []string       `json:"allergies"`
		Conditions       []string       `json:"conditions"`
		EmergencyContact qrcard.Contact `json:"emergencyContact"`
	}
	if err := s.decode(r, "qr_generate", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	card, receipt, err := s.Cards.Generate(qrcard.GenerateInput{
		PatientID:        req.PatientID,
		IssuerOrg:        req.IssuerOrg,
		BloodGroup:       req.BloodGroup,
		Allergies:        req.Allergies,
		Conditions:       req.Conditions,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"card": card, "receipt": receipt})
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.Cards.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"card": card})
}

func (s *Server) handleScanCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token     string `json:"token"`
		ScannedBy string `json:"scannedBy"`
	}
	if err := s.decode(r, "qr_scan", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.Cards.Scan(req.Token, actor(r, req.ScannedBy))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"scan": res})
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By               string          `json:"by"`
		BloodGroup       *string         `json:"bloodGroup"`
		Allergies        []string        `json:"allergies"`
		Conditions       []string        `json:"conditions"`
		EmergencyContact *qrcard.Contact `json:"emergencyContact"`
	}
	if err := s.decode(r, "qr_update", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	card, receipt, err := s.Cards.Update(r.PathValue("id"), qrcard.UpdateInput{
		BloodGroup:       req.BloodGroup,
		Allergies:        req.Allergies,
		Conditions:       req.Conditions,
		EmergencyContact: req.EmergencyContact,
	}, actor(r, req.By))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"card": card, "receipt": receipt})
}

func (s *Server) handleRevokeCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By     string `json:"by"`
		Reason string `json:"reason"`
	}
	if err := s.decode(r, "qr_revoke", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	card, receipt, err := s.Cards.Revoke(r.PathValue("id"), req.Reason, actor(r, req.By))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"card": card, "receipt": receipt})
}
