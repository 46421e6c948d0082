package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/auth-service/internal/domain"
)

// Kind names one of the three token purposes.
type Kind string

const (
	KindAccess       Kind = "access"
	KindRefresh      Kind = "refresh"
	KindVerification Kind = "verification"
)

// ErrInvalidToken is returned for every verification failure. The cause is
// wrapped for logging but callers only match on this sentinel.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of every token kind. Email and Role are only set on
// access tokens.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Type   Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig holds the per-kind secrets and lifetimes.
type TokenConfig struct {
	AccessSecret       string
	RefreshSecret      string
	VerificationSecret string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	VerificationTTL    time.Duration
	Issuer             string
}

type kindSettings struct {
	secret []byte
	ttl    time.Duration
}

// TokenService issues and verifies HS256 tokens. It holds no mutable state.
type TokenService struct {
	kinds  map[Kind]kindSettings
	issuer string
	now    func() time.Time
}

// NewTokenService validates cfg and builds a token service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" || cfg.VerificationSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret ||
		cfg.AccessSecret == cfg.VerificationSecret ||
		cfg.RefreshSecret == cfg.VerificationSecret {
		return nil, errors.New("token secrets must be distinct")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.VerificationTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer must not be empty")
	}

	return &TokenService{
		kinds: map[Kind]kindSettings{
			KindAccess:       {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			KindRefresh:      {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
			KindVerification: {secret: []byte(cfg.VerificationSecret), ttl: cfg.VerificationTTL},
		},
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of tokens of kind.
func (s *TokenService) TTL(kind Kind) time.Duration {
	return s.kinds[kind].ttl
}

// IssueAccessToken signs a short-lived token carrying id, email and role.
func (s *TokenService) IssueAccessToken(user *domain.User) (string, error) {
	return s.issue(KindAccess, &Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
}

// IssueRefreshToken signs a long-lived token carrying only the user id.
func (s *TokenService) IssueRefreshToken(user *domain.User) (string, error) {
	return s.issue(KindRefresh, &Claims{UserID: user.ID})
}

// IssueVerificationToken signs the token embedded in the email link.
func (s *TokenService) IssueVerificationToken(userID string) (string, error) {
	return s.issue(KindVerification, &Claims{UserID: userID})
}

func (s *TokenService) issue(kind Kind, claims *Claims) (string, error) {
	settings, ok := s.kinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("sign %s token: empty user id", kind)
	}

	now := s.now().UTC()
	claims.Type = kind
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(settings.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(settings.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify parses tokenString as a token of kind. Any failure, including a
// token of another kind, yields an error wrapping ErrInvalidToken.
func (s *TokenService) Verify(tokenString string, kind Kind) (*Claims, error) {
	settings, ok := s.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, kind)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return settings.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Type)
	}
	if claims.Subject == "" || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
