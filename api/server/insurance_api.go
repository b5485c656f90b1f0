package server

import (
	"net/http"

	"arogyarakshak/core/insurance"
)

// RegisterInsuranceAPI registers the claim and pre-authorization endpoints.
func RegisterInsuranceAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("POST /api/insurance/claims", s.handleSubmitClaim)
	mux.HandleFunc("GET /api/insurance/claims", s.handleListClaims)
	mux.HandleFunc("GET /api/insurance/claims/{id}", s.handleGetClaim)
	mux.HandleFunc("POST /api/insurance/claims/{id}/review", s.handleReviewClaim)
	mux.HandleFunc("POST /api/insurance/preauth", s.handleRequestPreAuth)
	mux.HandleFunc("GET /api/insurance/preauth/{id}", s.handleGetPreAuth)
}

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PolicyNumber string   `json:"policyNumber"`
		PatientID    string   `json:"patientId"`
		HospitalID   string   `json:"hospitalId"`
		Amount       float64  `json:"amount"`
		Diagnosis    string   `json:"diagnosis"`
		RecordIDs    []string `json:"recordIds"`
	}
	if err := s.decode(r, "claim_submit", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	claim, receipt, err := s.Claims.SubmitClaim(insurance.ClaimInput{
		PolicyNumber: req.PolicyNumber,
		PatientID:    req.PatientID,
		HospitalID:   req.HospitalID,
		Amount:       req.Amount,
		Diagnosis:    req.Diagnosis,
		RecordIDs:    req.RecordIDs,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"claim": claim, "receipt": receipt})
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	claims := s.Claims.ListClaims(r.URL.Query().Get("patientId"))
	ok(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.Claims.GetClaim(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"claim": claim})
}

func (s *Server) handleReviewClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reviewer       string  `json:"reviewer"`
		Decision       string  `json:"decision"`
		ApprovedAmount float64 `json:"approvedAmount"`
		Note           string  `json:"note"`
	}
	if err := s.decode(r, "claim_review", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	claim, receipt, err := s.Claims.ReviewClaim(r.PathValue("id"), insurance.ReviewInput{
		Reviewer:       actor(r, req.Reviewer),
		Decision:       insurance.Decision(req.Decision),
		ApprovedAmount: req.ApprovedAmount,
		Note:           req.Note,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"claim": claim, "receipt": receipt})
}

func (s *Server) handleRequestPreAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID     string  `json:"patientId"`
		HospitalID    string  `json:"hospitalId"`
		Procedure     string  `json:"procedure"`
		EstimatedCost float64 `json:"estimatedCost"`
	}
	if err := s.decode(r, "preauth", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	pa, receipt, err := s.Claims.RequestPreAuth(insurance.PreAuthInput{
		PatientID:     req.PatientID,
		HospitalID:    req.HospitalID,
		Procedure:     req.Procedure,
		EstimatedCost: req.EstimatedCost,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"preAuth": pa, "receipt": receipt})
}

func (s *Server) handleGetPreAuth(w http.ResponseWriter, r *http.Request) {
	pa, err := s.Claims.GetPreAuth(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"preAuth": pa})
}
