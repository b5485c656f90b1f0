package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"arogyarakshak/core/asha"
	"arogyarakshak/core/auth"
	"arogyarakshak/core/compliance"
	"arogyarakshak/core/explorer"
	"arogyarakshak/core/insurance"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/qrcard"
	"arogyarakshak/core/records"
	"arogyarakshak/core/validation"
	"arogyarakshak/core/wallet"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

var (
	notFoundErrs = []error{
		records.ErrNotFound, insurance.ErrNotFound, compliance.ErrNotFound,
		qrcard.ErrNotFound, asha.ErrNotFound, explorer.ErrNotFound,
		ledger.ErrNotFound, wallet.ErrKeyNotFound,
	}
	invalidErrs = []error{
		errBadRequest, validation.ErrInvalid,
		records.ErrInvalid, insurance.ErrInvalid, compliance.ErrInvalid,
		qrcard.ErrInvalid, asha.ErrInvalid, explorer.ErrInvalid,
		ledger.ErrInvalidTx, wallet.ErrInvalidOrgID,
	}
	conflictErrs = []error{
		records.ErrConflict, insurance.ErrConflict, compliance.ErrConflict,
		qrcard.ErrConflict, asha.ErrConflict,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case isAny(err, invalidErrs):
		return http.StatusBadRequest
	case isAny(err, notFoundErrs):
		return http.StatusNotFound
	case isAny(err, conflictErrs):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ok writes {"success": true} merged with fields.
func ok(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// fail writes err with its mapped status. Unexpected errors are logged and
// reported generically.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger().Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, status, "internal server error")
		return
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, status, map[string]any{"error": verr.Error(), "fields": verr.Fields})
		return
	}
	writeError(w, status, err.Error())
}

// decode reads the body, validates it against schema and unmarshals it into v.
func (s *Server) decode(r *http.Request, schema string, v any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(raw) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%w: malformed JSON", errBadRequest)
	}
	if s.Validator != nil {
		if err := s.Validator.Validate(schema, raw); err != nil {
			return err
		}
	}
	// numbers stay exact so client signatures over them still verify
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// actor returns the authenticated caller when there is one, otherwise the
// actor named in the request body.
func actor(r *http.Request, fromBody string) string {
	if p, ok := principalFrom(r.Context()); ok {
		return p.Actor
	}
	return fromBody
}
