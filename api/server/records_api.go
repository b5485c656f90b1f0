package server

import (
	"net/http"

	"arogyarakshak/core"
	"arogyarakshak/core/records"
)

// RegisterRecordAPI registers the medical record endpoints.
func RegisterRecordAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("POST /api/records", s.handleAddRecord)
	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("GET /api/records/{id}", s.handleGetRecord)
	mux.HandleFunc("POST /api/records/{id}/dispute", s.handleDisputeRecord)
	mux.HandleFunc("POST /api/records/{id}/endorse", s.handleEndorseRecord)
	mux.HandleFunc("POST /api/records/{id}/feedback", s.handleRecordFeedback)
}

type addRecordRequest struct {
	PatientID  string              `json:"patientId"`
	DoctorID   string              `json:"doctorId"`
	HospitalID string              `json:"hospitalId"`
	RecordType string              `json:"recordType"`
	Title      string              `json:"title"`
	Data       map[string]any      `json:"data"`
	Signed     *core.SignedPayload `json:"signed"`
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req addRecordRequest
	if err := s.decode(r, "record_add", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, receipt, err := s.Records.Add(records.AddInput{
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		HospitalID: req.HospitalID,
		RecordType: req.RecordType,
		Title:      req.Title,
		Data:       req.Data,
		Signed:     req.Signed,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"record": rec, "receipt": receipt})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	patientID := r.URL.Query().Get("patientId")
	if patientID == "" {
		writeError(w, http.StatusBadRequest, "patientId is required")
		return
	}
	recs := s.Records.ListByPatient(patientID)
	ok(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Records.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"record": rec})
}

func (s *Server) handleDisputeRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By     string `json:"by"`
		Reason string `json:"reason"`
	}
	if err := s.decode(r, "record_dispute", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, receipt, err := s.Records.Dispute(r.PathValue("id"), actor(r, req.By), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"record": rec, "receipt": receipt})
}

func (s *Server) handleEndorseRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By   string `json:"by"`
		Note string `json:"note"`
	}
	if err := s.decode(r, "record_endorse", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, receipt, err := s.Records.Endorse(r.PathValue("id"), actor(r, req.By), req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"record": rec, "receipt": receipt})
}

func (s *Server) handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		By      string `json:"by"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := s.decode(r, "record_feedback", &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, receipt, err := s.Records.Feedback(r.PathValue("id"), actor(r, req.By), req.Rating, req.Comment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"record": rec, "receipt": receipt})
}
