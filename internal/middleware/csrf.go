package middleware

import (
	"crypto/sha256"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"
)

const (
	csrfCookieName = "codelove_csrf"
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF protects form posts. The key is hashed so any configured length yields the
// 32 bytes gorilla/csrf wants. Without secure cookies requests are treated as plain
// HTTP so local development works.
func CSRF(key string, secure bool, trustedOrigins []string) func(http.Handler) http.Handler {
	sum := sha256.Sum256([]byte(key))
	protect := csrf.Protect(sum[:],
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(CSRFFieldName),
		csrf.RequestHeader(CSRFHeaderName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusForbidden, "invalid_csrf", "invalid CSRF token")
		})),
	)
	return func(next http.Handler) http.Handler {
		h := protect(next)
		if secure {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// CSRFField renders the hidden token input for templates.
func CSRFField(r *http.Request) template.HTML {
	return csrf.TemplateField(r)
}

func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}
