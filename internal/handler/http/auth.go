package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/auth-service/internal/domain"
	"github.com/utafrali/auth-service/internal/service"
	apperrors "github.com/utafrali/auth-service/pkg/errors"
	"github.com/utafrali/auth-service/pkg/httputil"
	"github.com/utafrali/auth-service/pkg/middleware"
	"github.com/utafrali/auth-service/pkg/validator"
)

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refreshToken"

const maxBodyBytes = 1 << 20

// AuthService is the subset of *service.AuthService the handlers call.
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (*service.AuthResult, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, principal *middleware.Principal) error
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	AuthenticateAccessToken(ctx context.Context, token string) (*middleware.Principal, error)
}

var _ AuthService = (*service.AuthService)(nil)

// CookieConfig controls the refresh-token cookie.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AuthService
	cookie  CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AuthService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration. Presence and
// format checks happen in the service so the messages stay in one place.
type RegisterRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"password"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"password"`
}

// --- Response types ---

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	User        domain.Summary `json:"user"`
	AccessToken string         `json:"accessToken"`
}

// RefreshResponse is returned by refresh.
type RefreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
}

// ProfileResponse is returned by profile.
type ProfileResponse struct {
	Success bool           `json:"success"`
	User    domain.Profile `json:"user"`
}

// --- Handlers ---

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, AuthResponse{
		Success:     true,
		Message:     "User registered successfully",
		User:        result.User.Summary(),
		AccessToken: result.AccessToken,
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.refreshCookie(result.RefreshToken, int(h.cookie.MaxAge.Seconds())))
	httputil.WriteJSON(w, http.StatusOK, AuthResponse{
		Success:     true,
		Message:     "Login successful",
		User:        result.User.Summary(),
		AccessToken: result.AccessToken,
	})
}

// Verify handles GET /verify?token=
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	msg, err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, msg)
}

// Logout handles GET /logout. The refresh cookie is cleared as well.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.service.Logout(r.Context(), principal); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.refreshCookie("", -1))
	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// Refresh handles POST /refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		token = c.Value
	}

	accessToken, err := h.service.RefreshAccessToken(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RefreshResponse{Success: true, AccessToken: accessToken})
}

// Profile handles GET /profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.MissingToken("No token provided", http.StatusUnauthorized), h.logger)
		return
	}

	user, err := h.service.GetProfile(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ProfileResponse{Success: true, User: user.Profile()})
}

// decode reads a size-limited JSON body into dst and runs its validate tags.
// It writes the error response itself and reports whether to continue.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, r, err)
		return false
	}
	httputil.WriteError(w, r, apperrors.Validation("Invalid request body"), h.logger)
	return false
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
