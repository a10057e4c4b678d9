package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithOriginAndAuth_MissingTokenIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/mcp", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, 401, rec.Code)
}

func TestWithOriginAndAuth_WrongTokenIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, 401, rec.Code)
}

func TestWithOriginAndAuth_DisallowedOriginIsForbidden(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, 403, rec.Code)
}

func TestWithOriginAndAuth_AllowedLocalhostOriginPasses(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	// Passes the middleware chain; fails later on an empty/malformed body,
	// but never with the 401/403 the origin+auth gate would have returned.
	assert.NotEqual(t, 401, rec.Code)
	assert.NotEqual(t, 403, rec.Code)
}

func TestWithOriginAndAuth_QueryTokenIsAccepted(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/mcp?token="+testToken, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.NotEqual(t, 401, rec.Code)
	assert.NotEqual(t, 403, rec.Code)
}

func TestHandleHealth_BypassesOriginAndAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
