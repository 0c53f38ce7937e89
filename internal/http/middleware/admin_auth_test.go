package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants/demo-dental/invalidate", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "ops@example.com", claims.Subject)
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, called := serveAdmin(t, "", "Bearer "+signedAdminToken(t, "secret", "ops@example.com", time.Minute))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, called := serveAdmin(t, "secret", "")
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAdminJWTRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"wrong secret": "Bearer " + signedAdminToken(t, "wrong", "ops@example.com", time.Minute),
		"expired":      "Bearer " + signedAdminToken(t, "secret", "ops@example.com", -time.Minute),
		"no subject":   "Bearer " + signedAdminToken(t, "secret", "", time.Minute),
		"no expiry":    "Bearer " + signedAdminToken(t, "secret", "ops@example.com", 0),
		"basic scheme": "Basic b3BzOnNlY3JldA==",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, called := serveAdmin(t, "secret", header)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminJWTRejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "ops@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, called := serveAdmin(t, "secret", "Bearer "+signed)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTValidToken(t *testing.T) {
	rec, called := serveAdmin(t, "secret", "bearer "+signedAdminToken(t, "secret", "ops@example.com", 5*time.Minute))
	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func signedAdminToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: subject}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
