package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/auth-service/internal/domain"
)

func testConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:       "access-secret-0123456789abcdef0123",
		RefreshSecret:      "refresh-secret-0123456789abcdef012",
		VerificationSecret: "verify-secret-0123456789abcdef0123",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         7 * 24 * time.Hour,
		VerificationTTL:    15 * time.Minute,
		Issuer:             "auth-service",
	}
}

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testConfig())
	require.NoError(t, err)
	return svc
}

func testUser() *domain.User {
	return &domain.User{ID: "user-123", Email: "ada@example.com", Role: domain.RoleUser}
}

func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TokenConfig)
	}{
		{"empty secret", func(c *TokenConfig) { c.RefreshSecret = "" }},
		{"shared secret", func(c *TokenConfig) { c.VerificationSecret = c.AccessSecret }},
		{"zero ttl", func(c *TokenConfig) { c.AccessTTL = 0 }},
		{"empty issuer", func(c *TokenConfig) { c.Issuer = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			svc, err := NewTokenService(cfg)
			assert.Nil(t, svc)
			assert.Error(t, err)
		})
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.IssueAccessToken(testUser())
	require.NoError(t, err)

	claims, err := svc.Verify(token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, KindAccess, claims.Type)
	assert.Equal(t, "auth-service", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefreshAndVerificationTokens_CarryOnlyUserID(t *testing.T) {
	svc := newTestService(t)

	refresh, err := svc.IssueRefreshToken(testUser())
	require.NoError(t, err)
	claims, err := svc.Verify(refresh, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.Role)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	verification, err := svc.IssueVerificationToken("user-123")
	require.NoError(t, err)
	claims, err = svc.Verify(verification, KindVerification)
	require.NoError(t, err)
	assert.Equal(t, KindVerification, claims.Type)
}

func TestTokens_HaveUniqueIDs(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.IssueAccessToken(testUser())
	require.NoError(t, err)
	b, err := svc.IssueAccessToken(testUser())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_RejectsOtherKinds(t *testing.T) {
	svc := newTestService(t)
	access, err := svc.IssueAccessToken(testUser())
	require.NoError(t, err)
	refresh, err := svc.IssueRefreshToken(testUser())
	require.NoError(t, err)
	verification, err := svc.IssueVerificationToken("user-123")
	require.NoError(t, err)

	cases := []struct {
		token string
		kind  Kind
	}{
		{access, KindRefresh},
		{access, KindVerification},
		{refresh, KindAccess},
		{refresh, KindVerification},
		{verification, KindAccess},
		{verification, KindRefresh},
	}
	for _, c := range cases {
		_, err := svc.Verify(c.token, c.kind)
		assert.ErrorIs(t, err, ErrInvalidToken, "kind %s", c.kind)
	}
}

func TestVerify_RejectsWrongTypClaimWithRightSecret(t *testing.T) {
	svc := newTestService(t)
	claims := &Claims{UserID: "user-123", Type: KindRefresh, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "auth-service",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig().AccessSecret))
	require.NoError(t, err)

	_, err = svc.Verify(token, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := svc.IssueVerificationToken("user-123")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token, KindVerification)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_RejectsTamperedAndMalformed(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.IssueAccessToken(testUser())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	for _, bad := range []string{"", "not-a-jwt", "a.b.c", tampered} {
		_, err := svc.Verify(bad, KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", bad)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	svc := newTestService(t)
	claims := &Claims{UserID: "user-123", Type: KindAccess, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "auth-service",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testConfig().AccessSecret))
	require.NoError(t, err)
	_, err = svc.Verify(hs512, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsForeignIssuerAndMissingSubject(t *testing.T) {
	svc := newTestService(t)
	secret := []byte(testConfig().AccessSecret)

	foreign := &Claims{UserID: "user-123", Type: KindAccess, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, foreign).SignedString(secret)
	require.NoError(t, err)
	_, err = svc.Verify(token, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous := &Claims{Type: KindAccess, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "auth-service",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, anonymous).SignedString(secret)
	require.NoError(t, err)
	_, err = svc.Verify(token, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_RejectsEmptyUserID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.IssueVerificationToken("")
	assert.Error(t, err)
}

func TestTTL(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, 15*time.Minute, svc.TTL(KindAccess))
	assert.Equal(t, 7*24*time.Hour, svc.TTL(KindRefresh))
	assert.Equal(t, 15*time.Minute, svc.TTL(KindVerification))
}
