// ABOUTME: Tests for the bearer API-key middleware.
// ABOUTME: Covers disabled mode, valid/invalid/missing tokens, and the error body.

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedHandler(apiKey string, enabled bool) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(apiKey, enabled)(ok)
}

func TestMiddleware_Disabled(t *testing.T) {
	h := authedHandler("secret", false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_ValidToken(t *testing.T) {
	h := authedHandler("secret", true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_WrongToken(t *testing.T) {
	h := authedHandler("secret", true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1", nil)
	req.Header.Set("Authorization", "Bearer not-it")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Unauthorized", body.Error)
	assert.Equal(t, "Invalid or missing API key", body.Message)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	h := authedHandler("secret", true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	for _, header := range []string{"secret", "Basic secret", "Bearer ", "bearer secret"} {
		h := authedHandler("secret", true)

		req := httptest.NewRequest(http.MethodPost, "/api/v1", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
