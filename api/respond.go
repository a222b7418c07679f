package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/leadledger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			http.Error(w, `{"message":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body) //nolint:errcheck // nothing to do once the header is out
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}

// writeError maps engine errors onto status codes and messages. Anything
// unrecognized is logged and reported as a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if fields, ok := validationFields(err); ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Validation error", Errors: fields})
		return
	}

	status, msg := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, leadledger.ErrLeadNotFound):
		status, msg = http.StatusNotFound, "Lead not found"
	case errors.Is(err, leadledger.ErrUserNotFound):
		status, msg = http.StatusNotFound, "User not found"
	case errors.Is(err, leadledger.ErrNotApproved):
		status, msg = http.StatusForbidden, "Lead not approved"
	case errors.Is(err, leadledger.ErrInsufficientCredits):
		status, msg = http.StatusBadRequest, "Insufficient credits"
	case errors.Is(err, leadledger.ErrEmailTaken):
		status, msg = http.StatusBadRequest, "User already exists"
	case errors.Is(err, leadledger.ErrInvalidTransition):
		status, msg = http.StatusBadRequest, "Invalid status transition"
	case errors.Is(err, leadledger.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, leadledger.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, leadledger.ErrForbidden):
		status, msg = http.StatusForbidden, "Insufficient permissions"
	}

	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeMessage(w, status, msg)
}

func validationFields(err error) (map[string]string, bool) {
	var multi *leadledger.ViolationsError
	if errors.As(err, &multi) {
		return multi.Fields(), true
	}
	var ve leadledger.ValidationError
	if errors.As(err, &ve) {
		return map[string]string{ve.Field: ve.Message}, true
	}
	return nil, false
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return leadledger.ValidationError{Field: "body", Message: "invalid JSON body"}
	}
	return nil
}
