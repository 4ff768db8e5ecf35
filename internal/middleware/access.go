package middleware

import (
	"net/http"
)

// RequireAccess lets requests through once the session holds the access flag. When
// enabled is false every request passes. Denied requests are served by gate.
func RequireAccess(s *Sessions, enabled bool, gate http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.AccessGranted(r) {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				writeError(w, r, http.StatusForbidden, "access_required", "access code required")
				return
			}
			gate.ServeHTTP(w, r)
		})
	}
}
