// Package httpx holds the JSON response helpers shared by the gift API and the
// middleware stack.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
)

// Error is the body every failed API call answers with.
type Error struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewError builds an API error. A zero status means 500.
func NewError(status int, code, format string, args ...any) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{
		Code:    oneLine(code, maxCodeLen),
		Message: oneLine(msg, maxMessageLen),
		Status:  status,
	}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// OnField names the request field the error is about.
func (e *Error) OnField(name string) *Error {
	cp := *e
	cp.Field = name
	return &cp
}

// Internal is what callers see when the cause must stay private.
var Internal = &Error{Code: "internal_server_error", Message: "internal server error", Status: http.StatusInternalServerError}

// Write answers with err. Errors that do not wrap an *Error are reported as
// Internal so that their text never reaches the client.
func Write(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal
	}
	body := *apiErr
	if body.RequestID == "" {
		body.RequestID = oneLine(middleware.GetReqID(ctx), maxCodeLen)
	}
	if body.TraceID == "" {
		body.TraceID = oneLine(requestctx.TraceID(ctx), 64)
	}
	WriteJSON(w, body.Status, body)
}

// WriteJSON encodes v with the given status. Non-ASCII text (pt-BR messages, emoji) is kept as-is.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// oneLine collapses whitespace runs and cuts s to at most limit bytes on a rune boundary.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
