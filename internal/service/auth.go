package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/auth-service/internal/auth"
	"github.com/utafrali/auth-service/internal/domain"
	"github.com/utafrali/auth-service/internal/event"
	"github.com/utafrali/auth-service/internal/mailer"
	"github.com/utafrali/auth-service/internal/metrics"
	"github.com/utafrali/auth-service/internal/repository"
	apperrors "github.com/utafrali/auth-service/pkg/errors"
	"github.com/utafrali/auth-service/pkg/logger"
	"github.com/utafrali/auth-service/pkg/middleware"
	"github.com/utafrali/auth-service/pkg/validator"
)

// Messages returned by the verification flow.
const (
	MsgEmailVerified   = "Email verified successfully!"
	MsgAlreadyVerified = "Already verified"
)

// PasswordVerifier compares a plaintext password with a stored hash.
type PasswordVerifier interface {
	Compare(plaintext, hash string) bool
}

// VerificationSender delivers verification links. Delivery is best effort.
type VerificationSender interface {
	SendVerification(ctx context.Context, to, link string)
}

// TokenRevoker is the optional access-token revocation set.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Config holds flow settings that are not owned by a dependency.
type Config struct {
	// VerificationURL is the base of the link mailed after registration.
	VerificationURL string
}

// AuthService implements the register, login, verify, refresh, logout and
// profile flows.
type AuthService struct {
	users     repository.UserRepository
	passwords PasswordVerifier
	tokens    *auth.TokenService
	mail      VerificationSender
	events    event.Publisher
	revoker   TokenRevoker
	metrics   *metrics.AuthMetrics
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithRevoker enables access-token revocation on logout.
func WithRevoker(r TokenRevoker) Option {
	return func(s *AuthService) { s.revoker = r }
}

// WithMetrics records flow outcomes.
func WithMetrics(m *metrics.AuthMetrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	passwords PasswordVerifier,
	tokens *auth.TokenService,
	mail VerificationSender,
	events event.Publisher,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *AuthService {
	if events == nil {
		events = event.NoopPublisher{}
	}
	s := &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		mail:      mail,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by Register and Login. RefreshToken is only set by Login.
type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// Register creates an unverified account, mails a verification link and
// returns an access token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (result *AuthResult, err error) {
	defer func() { s.observe("register", err) }()

	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.Validation("All fields are required")
	}
	if !validator.IsEmail(email) {
		return nil, apperrors.Validation("Email is not valid")
	}
	if len(input.Password) > validator.MaxPasswordBytes {
		return nil, apperrors.Validation(fmt.Sprintf("Password must be at most %d bytes", validator.MaxPasswordBytes))
	}

	user, err := s.users.Create(ctx, name, email, input.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEmail) || errors.Is(err, apperrors.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	accessToken, err := s.issueAccess(user)
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user)

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.log(ctx).InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return &AuthResult{User: user, AccessToken: accessToken}, nil
}

// sendVerification issues a verification token and hands the link to the
// mailer. Failures are logged and never surface to the caller.
func (s *AuthService) sendVerification(ctx context.Context, user *domain.User) {
	token, err := s.tokens.IssueVerificationToken(user.ID)
	if err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to issue verification token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.TokenIssued(string(auth.KindVerification))

	link, err := mailer.VerificationLink(s.cfg.VerificationURL, token)
	if err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to build verification link", slog.String("error", err.Error()))
		return
	}
	s.mail.SendVerification(ctx, user.Email, link)
}

// Login checks credentials and verification state and issues an access and
// a refresh token. Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (result *AuthResult, err error) {
	defer func() { s.observe("login", err) }()

	email := domain.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidCredentials()
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if !s.passwords.Compare(input.Password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}
	if !user.IsVerified {
		return nil, apperrors.EmailNotVerified()
	}

	user.RecordLogin(s.now())
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	accessToken, err := s.issueAccess(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	s.metrics.TokenIssued(string(auth.KindRefresh))

	s.log(ctx).InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyEmail marks the token's user as verified. Verifying twice is not an
// error; the second call reports MsgAlreadyVerified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (message string, err error) {
	defer func() { s.observe("verify", err) }()

	if token == "" {
		return "", apperrors.MissingToken("Verification token is required", http.StatusBadRequest)
	}

	claims, err := s.tokens.Verify(token, auth.KindVerification)
	if err != nil {
		s.log(ctx).DebugContext(ctx, "verification token rejected", slog.String("error", err.Error()))
		return "", apperrors.InvalidToken("Invalid or expired verification token", http.StatusBadRequest)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.NotFound("User")
		}
		return "", fmt.Errorf("find user by id: %w", err)
	}

	if !user.MarkVerified() {
		return MsgAlreadyVerified, nil
	}
	if err := s.users.Save(ctx, user); err != nil {
		return "", fmt.Errorf("mark user verified: %w", err)
	}

	if err := s.events.PublishUserVerified(ctx, user); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish user.verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.log(ctx).InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	return MsgEmailVerified, nil
}

// RefreshAccessToken issues a new access token for a valid refresh token.
// The refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (accessToken string, err error) {
	defer func() { s.observe("refresh", err) }()

	if refreshToken == "" {
		return "", apperrors.MissingToken("Refresh token is required", http.StatusUnauthorized)
	}

	invalid := apperrors.InvalidToken("Invalid or expired refresh token", http.StatusUnauthorized)
	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		s.log(ctx).DebugContext(ctx, "refresh token rejected", slog.String("error", err.Error()))
		return "", invalid
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", invalid
		}
		return "", fmt.Errorf("find user by id: %w", err)
	}

	return s.issueAccess(user)
}

// Logout ends the session of principal. Without a revocation set it only
// acknowledges; with one, the access token is rejected until it expires.
func (s *AuthService) Logout(ctx context.Context, principal *middleware.Principal) (err error) {
	defer func() { s.observe("logout", err) }()

	if s.revoker == nil || principal == nil || principal.TokenID == "" {
		return nil
	}
	if err := s.revoker.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	s.log(ctx).InfoContext(ctx, "access token revoked", slog.String("user_id", principal.UserID))
	return nil
}

// GetProfile returns the user behind userID.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

// AuthenticateAccessToken verifies a bearer token for the auth middleware.
// It satisfies middleware.TokenValidator.
func (s *AuthService) AuthenticateAccessToken(ctx context.Context, token string) (*middleware.Principal, error) {
	claims, err := s.tokens.Verify(token, auth.KindAccess)
	if err != nil {
		return nil, err
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.log(ctx).ErrorContext(ctx, "revocation check failed", slog.String("error", err.Error()))
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", auth.ErrInvalidToken)
		}
	}

	p := &middleware.Principal{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Role:    claims.Role,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

func (s *AuthService) issueAccess(user *domain.User) (string, error) {
	token, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.TokenIssued(string(auth.KindAccess))
	return token, nil
}

// observe records the outcome of one flow under its error code.
func (s *AuthService) observe(operation string, err error) {
	if err == nil {
		s.metrics.Operation(operation, metrics.OutcomeSuccess)
		return
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		s.metrics.Operation(operation, appErr.Code)
		return
	}
	s.metrics.Operation(operation, "INTERNAL_ERROR")
}

func (s *AuthService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}
