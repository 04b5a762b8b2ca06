package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error with a message and no machine code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// errorCodes maps each domain error category to its status and stable code.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
}

// StatusFor returns the HTTP status and machine code for err.
func StatusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// WriteError maps err to a status and code. Unrecognized errors are logged
// and reported without detail.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		message = "internal server error"
	}
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON decodes the request body into v. Unknown fields are rejected.
// The returned error wraps domain.ErrInvalidArgument except for oversized
// bodies, which the caller should report with status 413.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return domain.Invalid("request body is required")
		}
		return domain.Invalid("invalid request body: %v", err)
	}
	return nil
}

// WriteDecodeError reports a DecodeJSON failure.
func WriteDecodeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	WriteError(w, logger, err)
}

// UUIDParam parses the named chi URL parameter as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.Invalid("%s must be a valid UUID", name)
	}
	return id, nil
}

// UUIDQuery parses an optional query parameter as a UUID. A missing
// parameter yields nil.
func UUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.Invalid("%s must be a valid UUID", name)
	}
	return &id, nil
}

// BoolQuery parses an optional boolean query parameter, falling back to def
// when absent. def may be nil.
func BoolQuery(r *http.Request, name string, def *bool) (*bool, error) {
	switch r.URL.Query().Get(name) {
	case "":
		return def, nil
	case "true", "1":
		v := true
		return &v, nil
	case "false", "0":
		v := false
		return &v, nil
	}
	return nil, domain.Invalid("%s must be true or false", name)
}
