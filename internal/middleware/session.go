package middleware

import (
	"context"
	"net/http"
	"strings"
)

// SessionValidator checks whether a bearer token belongs to a live admin
// session.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) bool
}

// AdminSessionMiddleware guards admin routes with a bearer session token.
type AdminSessionMiddleware struct {
	validator SessionValidator
	enabled   bool
}

// NewAdminSessionMiddleware creates the admin session guard. When the admin
// secret is unset the whole admin API answers 503.
func NewAdminSessionMiddleware(validator SessionValidator, enabled bool) *AdminSessionMiddleware {
	return &AdminSessionMiddleware{validator: validator, enabled: enabled}
}

func (m *AdminSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Admin not configured",
			})
			return
		}

		token := ExtractBearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Authentication token required",
			})
			return
		}

		if !m.validator.ValidateSession(r.Context(), token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid or expired token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ExtractBearerToken pulls the token from the Authorization header.
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
