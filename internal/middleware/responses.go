package middleware

import (
	"net/http"
	"strings"

	"github.com/Patrickog1992/CODELOVE1/internal/httpx"
)

// writeError answers API and htmx callers with JSON and browsers with plain text.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if IsHTMX(r.Context()) || strings.HasPrefix(r.URL.Path, "/api/") {
		httpx.Write(r.Context(), w, httpx.NewError(status, code, "%s", msg))
		return
	}
	http.Error(w, msg, status)
}

// SecurityHeaders adds the standard hardening headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; "+
			"img-src 'self' data: https:; media-src 'self' https:; "+
			"style-src 'self' 'unsafe-inline'; script-src 'self' https://unpkg.com; "+
			"connect-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
