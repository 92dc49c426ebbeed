package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"keyserve/internal/config"
	"keyserve/internal/infrastructure"
)

// AdminAuth guards the admin surface. The credential arrives in the
// configured header (default X-Admin-Password) and is compared in
// constant time; when the configured secret is a bcrypt hash the header
// value is verified against it instead.
func AdminAuth(cfg config.AdminConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	header := cfg.Header
	if header == "" {
		header = "X-Admin-Password"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get(header)

			if !credentialMatches(cfg.Password, supplied) {
				logger.WarnContext(r.Context(), "admin auth rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)

				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusUnauthorized)

				traceID := infrastructure.GetTraceID(r.Context())
				response := `{"type":"https://keyserve.dev/problems/unauthorized","title":"Unauthorized","status":401,"detail":"Unauthorized","trace_id":"` + traceID + `"}`
				w.Write([]byte(response))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func credentialMatches(configured, supplied string) bool {
	if configured == "" || supplied == "" {
		return false
	}
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}
