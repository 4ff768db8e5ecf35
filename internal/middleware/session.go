package middleware

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName      = "codelove_session"
	keyAccessGranted = "access_granted"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// Sessions wraps a signed cookie store holding the access flag and flashes. Gift
// content never goes into the session.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(key []byte, secure bool) *Sessions {
	store := sessions.NewCookieStore(key)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.MaxAge = 7 * 24 * 60 * 60
	return &Sessions{store: store}
}

// get ignores decode errors; a tampered or stale cookie becomes a fresh session.
func (s *Sessions) get(r *http.Request) *sessions.Session {
	sess, _ := s.store.Get(r, sessionName)
	return sess
}

func (s *Sessions) AccessGranted(r *http.Request) bool {
	granted, _ := s.get(r).Values[keyAccessGranted].(bool)
	return granted
}

// GrantAccess marks the session as past the access gate and queues flashes for
// the next page, all in a single cookie write.
func (s *Sessions) GrantAccess(w http.ResponseWriter, r *http.Request, flashes ...Flash) error {
	sess := s.get(r)
	sess.Values[keyAccessGranted] = true
	for _, f := range flashes {
		sess.AddFlash(f)
	}
	return sess.Save(r, w)
}

// Flashes pops pending flashes. It must run before the response body is written.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := s.get(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(r, w)
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}
