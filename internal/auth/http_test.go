// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Covers bearer header, query-parameter fallback, and rejection paths

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedHandler(t *testing.T, verifier TokenVerifier) (http.Handler, *string) {
	t.Helper()
	var capturedUserID string
	handler := HTTPMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &capturedUserID
}

func TestHTTPMiddleware_BearerHeader(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("alice", time.Hour)
	require.NoError(t, err)

	handler, capturedUserID := newAuthedHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", *capturedUserID)
}

func TestHTTPMiddleware_QueryTokenFallback(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("bob", time.Hour)
	require.NoError(t, err)

	handler, capturedUserID := newAuthedHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", *capturedUserID)
}

func TestHTTPMiddleware_MissingToken(t *testing.T) {
	handler, _ := newAuthedHandler(t, NewJWTVerifier([]byte("secret")))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPMiddleware_InvalidToken(t *testing.T) {
	handler, _ := newAuthedHandler(t, NewJWTVerifier([]byte("secret")))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPMiddleware_MalformedAuthorizationHeader(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("alice", time.Hour)
	require.NoError(t, err)

	handler, _ := newAuthedHandler(t, v)

	// Not a Bearer scheme, and no query fallback present
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDFromContext_Unset(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, UserIDFromContext(req.Context()))
}
