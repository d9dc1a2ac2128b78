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

func serveAdmin(t *testing.T, secret string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	rec := httptest.NewRecorder()
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if secret != "" {
			claims, ok := AdminClaimsFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "operator", claims.Subject)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTOpenWithoutSecret(t *testing.T) {
	rec, called := serveAdmin(t, "", httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminJWTRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"wrong secret", "Bearer " + signedAdminToken(t, "wrong", time.Minute)},
		{"expired", "Bearer " + signedAdminToken(t, "secret", -time.Minute)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec, called := serveAdmin(t, "secret", req)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret", time.Minute))
	rec, called := serveAdmin(t, "secret", req)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminJWTWebsocketQueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/feed?token="+signedAdminToken(t, "secret", time.Minute), nil)
	req.Header.Set("Upgrade", "websocket")
	_, called := serveAdmin(t, "secret", req)
	assert.True(t, called)

	plain := httptest.NewRequest(http.MethodGet, "/api/appointments?token="+signedAdminToken(t, "secret", time.Minute), nil)
	_, called = serveAdmin(t, "secret", plain)
	assert.False(t, called, "query tokens are only accepted on upgrades")
}

func signedAdminToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
