// Package httputil is the HTTP boundary for domain errors and JSON bodies.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "learnhub/pkg/domain-errors"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// StatusForCode maps a domain error code to an HTTP status.
func StatusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidToken, dErrors.CodeSessionNotFound, dErrors.CodeSessionExpired:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeSignatureMismatch:
		return http.StatusBadRequest
	case dErrors.CodeUpstreamFailure:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the {"error","error_description"} envelope. Errors without
// a domain code, and internal errors, never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: string(dErrors.CodeInternal)}
	status := http.StatusInternalServerError

	if de, ok := dErrors.From(err); ok {
		status = StatusForCode(de.Code)
		resp.Error = string(de.Code)
		if status != http.StatusInternalServerError {
			resp.ErrorDescription = de.Message
		}
	}

	WriteJSON(w, status, resp)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
