package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/utafrali/auth-service/pkg/errors"
	"github.com/utafrali/auth-service/pkg/httputil"
	"github.com/utafrali/auth-service/pkg/logger"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Principal is the identity extracted from a verified access token.
type Principal struct {
	UserID    string
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// TokenValidator verifies a raw bearer token and returns its principal.
// Any error is reported to the client as an invalid token.
type TokenValidator func(ctx context.Context, token string) (*Principal, error)

// Auth rejects requests without a valid "Authorization: Bearer" access token
// and stores the principal in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.MissingToken("No token provided", http.StatusUnauthorized), nil)
				return
			}

			principal, err := validate(r.Context(), token)
			if err != nil {
				httputil.WriteError(w, r,
					apperrors.InvalidToken("Invalid or expired access token", http.StatusUnauthorized), nil)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = logger.WithUserID(ctx, principal.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", principal.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// PrincipalFromContext returns the principal stored by Auth, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
