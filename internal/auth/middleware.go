// ABOUTME: HTTP middleware for bearer API-key authentication on API endpoints.
// ABOUTME: Compares the Authorization header token against the configured key.

package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Error is the structured JSON body returned on authentication failure.
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware creates an HTTP middleware that requires a bearer token equal to
// apiKey. When enabled is false the middleware passes every request through
// untouched; enablement is decided once at startup (key configured and auth
// not explicitly disabled).
func Middleware(apiKey string, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" || token != apiKey {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(Error{
		Error:   "Unauthorized",
		Message: "Invalid or missing API key",
	})
}
