package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps an error returned by a domain service onto the
// response status for its kind.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		status, code = http.StatusNotFound, "not_found"
	case apperr.ErrOwnership:
		status, code = http.StatusForbidden, "not_owner"
	case apperr.ErrPermission:
		status, code = http.StatusForbidden, "permission_denied"
	case apperr.ErrSlotConflict:
		status, code = http.StatusConflict, "slot_conflict"
	case apperr.ErrDuplicateRequest:
		status, code = http.StatusConflict, "duplicate_request"
	case apperr.ErrNotAvailable:
		status, code = http.StatusConflict, "not_available"
	case apperr.ErrInvalidState:
		status, code = http.StatusConflict, "invalid_state"
	case apperr.ErrPastDate:
		status, code = http.StatusUnprocessableEntity, "past_date"
	case apperr.ErrInvalidInput:
		status, code = http.StatusBadRequest, "invalid_input"
	default:
		log.Printf("internal error: method=%s path=%s request_id=%s err=%v",
			r.Method, r.URL.Path, GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

// decodeBody parses the JSON body into dst and runs the struct validators.
// It writes the 400 response itself and reports whether the caller may go on.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", formatValidationError(err))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Field(), e.Tag(), e.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
	}
	return strings.Join(msgs, ", ")
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses a query parameter that may be absent.
func optionalUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Invalid(name + " must be a valid UUID")
	}
	return &id, nil
}
