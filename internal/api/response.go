package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"courtside/internal/database"
	"courtside/internal/service"

	"github.com/go-playground/validator/v10"
)

// Transport-level codes, in addition to the service error codes.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeRateLimited  = "RATE_LIMITED"
)

var statusByCode = map[string]int{
	service.CodeSlotUnavailable:  http.StatusConflict,
	service.CodeSlotBlocked:      http.StatusConflict,
	service.CodeNotFound:         http.StatusNotFound,
	service.CodeAlreadyCancelled: http.StatusOK, // repeat cancel is a no-op for the client
	service.CodeInvalidRequest:   http.StatusBadRequest,
	service.CodeInternal:         http.StatusInternalServerError,
}

var messageByCode = map[string]string{
	service.CodeSlotUnavailable:  "the requested time range is no longer available",
	service.CodeSlotBlocked:      "the requested time range is blocked",
	service.CodeNotFound:         "not found",
	service.CodeAlreadyCancelled: "booking is already cancelled",
	service.CodeInvalidRequest:   "invalid request",
	service.CodeInternal:         "internal error",
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Code: code, Error: message})
}

// writeServiceError maps err onto its taxonomy code. Only messages the service
// produced for invalid input are echoed; everything else gets a fixed text.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := service.ErrorCode(err)
	statusCode := statusByCode[code]
	message := messageByCode[code]

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		message = err.Error()
	case errors.Is(err, database.ErrInvalidTransition):
		message = "booking cannot change to the requested state"
	case errors.Is(err, database.ErrDuplicateSport):
		message = "sport with this name already exists"
	case errors.Is(err, database.ErrTransient), errors.Is(err, database.ErrConcurrentModification):
		statusCode = http.StatusServiceUnavailable
		message = "temporarily unavailable, retry the request"
	}

	if code == service.CodeInternal {
		s.logger.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, statusCode, code, message)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func (s *HTTPServer) decodeAndValidate(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", service.ErrInvalidRequest)
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s", service.ErrInvalidRequest, "validation failed")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", service.ErrInvalidRequest, strings.Join(parts, "; "))
}
