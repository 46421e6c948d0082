package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/auth-service/pkg/errors"
	"github.com/utafrali/auth-service/pkg/logger"
	"github.com/utafrali/auth-service/pkg/validator"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusCreated, http.StatusNotFound}
	for _, code := range codes {
		rec := httptest.NewRecorder()
		WriteJSON(rec, code, map[string]string{"key": "value"})

		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, code, rec.Code)
	}
}

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusOK, "Logged out successfully")

	var resp MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Logged out successfully", resp.Message)
}

// --- WriteError ---

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	WriteError(rec, req, apperrors.InvalidCredentials(), logger.Discard())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid credentials", resp.Message)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Code)
}

func TestWriteError_WrappedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)

	err := fmt.Errorf("verify: %w", apperrors.NotFound("user"))
	WriteError(rec, req, err, logger.Discard())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", decodeError(t, rec).Message)
}

func TestWriteError_UnknownErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)

	WriteError(rec, req, fmt.Errorf("pq: connection refused"), logger.Discard())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Internal server error", resp.Message)
	assert.NotContains(t, resp.Message, "connection refused")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req = req.WithContext(logger.WithCorrelationID(context.Background(), "req-42"))

	WriteError(rec, req, apperrors.InvalidToken("Invalid or expired token", http.StatusUnauthorized), nil)

	assert.Equal(t, "req-42", decodeError(t, rec).RequestID)
}

// --- WriteValidationError ---

func TestWriteValidationError_WithFields(t *testing.T) {
	type form struct {
		Email string `json:"email" validate:"required,email"`
	}
	verr := validator.Validate(form{Email: "nope"})
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	WriteValidationError(rec, req, verr)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "must be a valid email address", resp.Fields["email"])
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	WriteValidationError(rec, req, fmt.Errorf("decode request body: EOF"))

	resp := decodeError(t, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, resp.Fields)
}
