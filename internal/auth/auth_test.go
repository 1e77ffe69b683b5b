package auth

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTokens(t *testing.T) *HMACTokens {
	t.Helper()
	tokens, err := NewHMACTokens(testSecret, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return tokens
}

func TestHMACTokens_RoundTrip(t *testing.T) {
	tokens := newTokens(t)
	user := &models.User{ID: 42, Email: "alice@example.com", Role: models.RoleAdmin}

	token, expiresAt, err := tokens.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tokens.VerifyToken(token)
	require.NoError(t, err)
	id, err := claims.GetUserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestHMACTokens_Rejects(t *testing.T) {
	tokens := newTokens(t)
	user := &models.User{ID: 1, Email: "a@example.com", Role: models.RoleStaff}
	valid, _, err := tokens.Issue(user)
	require.NoError(t, err)

	expired := newTokens(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(user)
	require.NoError(t, err)

	other, err := NewHMACTokens(strings.Repeat("x", 32), time.Hour, tokens.logger)
	require.NoError(t, err)
	foreign, _, err := other.Issue(user)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iss": issuerName}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"expired", old},
		{"wrong secret", foreign},
		{"alg none", none},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.VerifyToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestNewHMACTokens_ShortSecret(t *testing.T) {
	_, err := NewHMACTokens("short", time.Hour, slog.Default())
	assert.Error(t, err)
}

func TestChainVerifier(t *testing.T) {
	a := newTokens(t)
	b, err := NewHMACTokens(strings.Repeat("y", 32), time.Hour, a.logger)
	require.NoError(t, err)

	token, _, err := b.Issue(&models.User{ID: 7, Email: "b@example.com", Role: models.RoleStaff})
	require.NoError(t, err)

	claims, err := ChainVerifier{a, b}.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)

	_, err = ChainVerifier{a}.VerifyToken(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "s3cret-pass"))
}

func TestGenerateTempPassword(t *testing.T) {
	p1, err := GenerateTempPassword(8)
	require.NoError(t, err)
	p2, err := GenerateTempPassword(8)
	require.NoError(t, err)

	assert.Len(t, p1, 8)
	assert.NotEqual(t, p1, p2)
	assert.NotContains(t, p1, "0")
	assert.NotContains(t, p1, "O")
}
