package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"miniloan/internal/session"
)

type TokenParser interface {
	Parse(tokenString string) (*session.Session, error)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": message},
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Authenticate resolves the bearer token into a session and stores it in the
// request context. Revoked sessions are refused.
func Authenticate(parser TokenParser, denylist session.Denylist, logger *slog.Logger) func(http.Handler) http.Handler {
	if denylist == nil {
		denylist = session.NopDenylist{}
	}
	logger = logger.With("component", "AuthMiddleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("Missing or malformed Authorization header", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			s, err := parser.Parse(token)
			if err != nil {
				logger.Warn("Invalid token", "error", err)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			revoked, err := denylist.IsRevoked(r.Context(), s.ID)
			if err != nil {
				logger.Error("Session denylist lookup failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "Session store unavailable")
				return
			}
			if revoked {
				logger.Warn("Rejected revoked session", "userID", s.UserID)
				writeError(w, http.StatusUnauthorized, "Session has ended")
				return
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !s.IsAdmin() {
				logger.Warn("Non-admin session denied", "userID", s.UserID, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, "Admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
