package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkordes/rideplanner/internal/identity"
)

// TokenVerifier resolves a bearer token to a user. *identity.JWT satisfies it.
type TokenVerifier interface {
	Verify(token string) (identity.User, error)
}

// NewBearerAuth returns a middleware that requires an
// "Authorization: Bearer <token>" header. The verified user is stored in the
// request context (see identity.UserFrom). Missing or invalid tokens get 401.
func NewBearerAuth(v TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="rideplanner"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			u, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				log.DebugContext(r.Context(), "rejected bearer token", "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="rideplanner", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			}
			recordUser(r.Context(), u.ID)
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), u)))
		})
	}
}

// writeError writes the API's standard error body.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
