package server

import (
	"net/http"

	"arogyarakshak/core/asha"
)

// RegisterASHAAPI registers the ASHA worker endpoints.
func RegisterASHAAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("POST /api/asha/workers", s.handleRegisterWorker)
	mux.HandleFunc("GET /api/asha/workers/{id}", s.handleGetWorker)
	mux.HandleFunc("GET /api/asha/workers/{id}/activities", s.handleListActivities)
	mux.HandleFunc("POST /api/asha/workers/{id}/activities", s.handleLogActivity)
	mux.HandleFunc("POST /api/asha/otp/request", s.handleRequestOTP)
	mux.HandleFunc("POST /api/asha/otp/verify", s.handleVerifyOTP)
}

func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Phone        string `json:"phone"`
		Village      string `json:"village"`
		District     string `json:"district"`
		SupervisorID string `json:"supervisorId"`
	}
	if err := s.decode(r, "asha_register", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	worker, receipt, err := s.ASHA.RegisterWorker(asha.WorkerInput{
		Name:         req.Name,
		Phone:        req.Phone,
		Village:      req.Village,
		District:     req.District,
		SupervisorID: req.SupervisorID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"worker": worker, "receipt": receipt})
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	worker, err := s.ASHA.Worker(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summary, err := s.ASHA.Summary(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"worker": worker, "summary": summary})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	acts, err := s.ASHA.Activities(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"activities": acts, "count": len(acts)})
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      string `json:"type"`
		PatientID string `json:"patientId"`
		Village   string `json:"village"`
		Notes     string `json:"notes"`
	}
	if err := s.decode(r, "asha_activity", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	act, err := s.ASHA.LogActivity(r.PathValue("id"), asha.ActivityInput{
		Type:      req.Type,
		PatientID: req.PatientID,
		Village:   req.Village,
		Notes:     req.Notes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"activity": act})
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"workerId"`
	}
	if err := s.decode(r, "asha_otp_request", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	issue, err := s.ASHA.RequestOTP(req.WorkerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"workerId": issue.WorkerID, "expiresAt": issue.ExpiresAt, "receipt": issue.Receipt}
	if s.ExposeOTP {
		resp["otp"] = issue.Code
	}
	ok(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"workerId"`
		Code     string `json:"code"`
	}
	if err := s.decode(r, "asha_otp_verify", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.ASHA.VerifyOTP(req.WorkerID, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if result != asha.OTPVerified {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "result": result})
		return
	}
	ok(w, http.StatusOK, map[string]any{"result": result})
}
