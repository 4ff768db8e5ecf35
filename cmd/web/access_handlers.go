package main

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/config"
	mw "github.com/Patrickog1992/CODELOVE1/internal/middleware"
	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
)

func (a *app) accessGateHandler(w http.ResponseWriter, r *http.Request) {
	a.renderAccess(w, r, false)
}

func (a *app) accessSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Access.Code == "" {
		mw.Redirect(w, r, "/criar")
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	code := config.NormalizeAccessCode(r.PostForm.Get("code"))
	granted := code != "" && subtle.ConstantTimeCompare([]byte(code), []byte(a.cfg.Access.Code)) == 1
	a.metrics.AccessAttempt(granted)
	if !granted {
		a.renderAccess(w, r, true)
		return
	}
	welcome := mw.Flash{Kind: "success", Message: a.bundle.T(mw.Lang(r), "access.granted")}
	if err := a.sessions.GrantAccess(w, r, welcome); err != nil {
		requestctx.Logger(r.Context()).Error("grant access", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	mw.Redirect(w, r, "/criar")
}

func (a *app) renderAccess(w http.ResponseWriter, r *http.Request, failed bool) {
	lang := mw.Lang(r)
	p := a.newPage(w, r, a.bundle.T(lang, "access.meta_title"), "")
	p.Meta = p.Meta.Private()
	p.BodyClass = "access"
	name := "base"
	if mw.IsHTMX(r.Context()) {
		name = "access-form"
	}
	a.views.render(w, r, http.StatusOK, "access", name, accessView{page: p, Error: failed})
}
