package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/auth-service/pkg/errors"
	"github.com/utafrali/auth-service/pkg/logger"
	"github.com/utafrali/auth-service/pkg/validator"
)

// ErrorResponse is the envelope returned for every failed request.
type ErrorResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// MessageResponse is the envelope for successful requests that only carry a message.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes a {success:true, message} envelope.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageResponse{Success: true, Message: message})
}

// WriteError converts any error into the standard error envelope. AppErrors
// keep their status and message; everything else becomes a 500 with a generic
// message and is logged. It prefers the request-scoped logger from context
// over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, ErrorResponse{
		Success:   false,
		Message:   appErr.Message,
		Code:      appErr.Code,
		RequestID: requestID,
	})
}

// WriteValidationError writes a 400 envelope for a failed DTO validation,
// including field-level messages when available.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Success:   false,
		Message:   err.Error(),
		Code:      "VALIDATION_ERROR",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		resp.Message = valErr.Error()
		resp.Fields = valErr.Fields()
	}

	WriteJSON(w, http.StatusBadRequest, resp)
}
