package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for each failure kind of the auth flows. Every AppError
// wraps exactly one of these so callers can classify with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("duplicate email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("resource not found")
	ErrInternal           = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation creates a 400 error for missing or malformed input.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// DuplicateEmail creates a 400 error for an email that is already registered.
func DuplicateEmail() *AppError {
	return &AppError{
		Code:    "DUPLICATE_EMAIL",
		Message: "Email already registered",
		Status:  http.StatusBadRequest,
		Err:     ErrDuplicateEmail,
	}
}

// InvalidCredentials creates a 401 error. The message is deliberately the same
// for an unknown email and a wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "Invalid credentials",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// EmailNotVerified creates a 400 error for a login attempt on an unverified account.
func EmailNotVerified() *AppError {
	return &AppError{
		Code:    "EMAIL_NOT_VERIFIED",
		Message: "Email not verified",
		Status:  http.StatusBadRequest,
		Err:     ErrEmailNotVerified,
	}
}

// MissingToken creates an error for an absent token. The status differs per
// flow (400 for the verification link, 401 for bearer and refresh tokens).
func MissingToken(message string, status int) *AppError {
	return &AppError{
		Code:    "MISSING_TOKEN",
		Message: message,
		Status:  status,
		Err:     ErrMissingToken,
	}
}

// InvalidToken creates an error for an expired, malformed or wrong-kind token.
func InvalidToken(message string, status int) *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: message,
		Status:  status,
		Err:     ErrInvalidToken,
	}
}

// NotFound creates a 404 error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Internal creates a 500 error. The wrapped error is kept for logging and is
// never rendered to clients.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrEmailNotVerified):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
