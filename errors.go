package gatekit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Stable error codes returned in rejection bodies. Clients branch on
// these, never on message text.
const (
	ErrorCodeMissingToken           = "MISSING_TOKEN"
	ErrorCodeInvalidToken           = "INVALID_TOKEN"
	ErrorCodeUserNotFound           = "USER_NOT_FOUND"
	ErrorCodeSessionExpired         = "SESSION_EXPIRED"
	ErrorCodeIPBlocked              = "IP_BLOCKED"
	ErrorCodeRateLimited            = "RATE_LIMITED"
	ErrorCodeCSRFInvalid            = "CSRF_INVALID"
	ErrorCodeInsufficientPermission = "INSUFFICIENT_PERMISSION"
	ErrorCodeInsufficientRole       = "INSUFFICIENT_ROLE"
	ErrorCodeInternalError          = "INTERNAL_ERROR"
)

// PipelineError is a rejection produced by a pipeline stage.
type PipelineError struct {
	Code    string // stable error code (e.g. "IP_BLOCKED")
	Message string // human-readable description
	Status  int    // HTTP status code
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPipelineError creates a new pipeline error
func NewPipelineError(code, message string, status int) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// errorResponse is the JSON body written for every rejection.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Rate-limit rejections carry the ceiling and remaining budget so
	// clients can back off intelligently.
	Limit     *int `json:"limit,omitempty"`
	Remaining *int `json:"remaining,omitempty"`
}

// writeError writes a structured JSON rejection.
func writeError(w http.ResponseWriter, logger *slog.Logger, perr *PipelineError) {
	writeErrorBody(w, logger, perr, errorResponse{
		Code:    perr.Code,
		Message: perr.Message,
	})
}

// writeRateLimitError writes the 429 body with limit and remaining.
func writeRateLimitError(w http.ResponseWriter, logger *slog.Logger, perr *PipelineError, limit, remaining int) {
	writeErrorBody(w, logger, perr, errorResponse{
		Code:      perr.Code,
		Message:   perr.Message,
		Limit:     &limit,
		Remaining: &remaining,
	})
}

func writeErrorBody(w http.ResponseWriter, logger *slog.Logger, perr *PipelineError, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(perr.Status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write error response", "error", err, "code", perr.Code)
	}
}
