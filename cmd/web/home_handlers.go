package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	mw "github.com/Patrickog1992/CODELOVE1/internal/middleware"
	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
	"github.com/Patrickog1992/CODELOVE1/internal/seo"
)

// homeHandler serves the viewer when the request carries a valid gift and the
// landing page otherwise.
func (a *app) homeHandler(w http.ResponseWriter, r *http.Request) {
	// An empty gift parameter is not a viewer session and not a decode failure.
	if r.URL.Query().Get(gift.QueryParam) != "" {
		if rec, ok := a.codec.DecodeQuery(r.URL.Query()); ok {
			a.metrics.GiftViewed()
			a.renderViewer(w, r, rec)
			return
		}
		a.metrics.DecodeFailed()
	}
	a.renderLanding(w, r)
}

func (a *app) renderLanding(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	landing, err := a.landing.Landing(lang)
	if err != nil {
		requestctx.Logger(r.Context()).Error("landing content unavailable", zap.String("lang", lang), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	p := a.newPage(w, r, a.bundle.T(lang, "meta.title"), a.bundle.T(lang, "meta.description"))
	questions := make([]seo.Question, 0, len(landing.FAQ.Items))
	for _, item := range landing.FAQ.Items {
		questions = append(questions, seo.Question{Name: item.Question, Answer: string(item.Answer)})
	}
	site := a.baseURL(r)
	p.Meta.JSONLD = []string{
		seo.JSON(seo.Organization("CODELOVE", site, "https://i.imgur.com/bJxEkd2.png")),
		seo.JSON(seo.WebSite("CODELOVE", site, p.HTMLLang)),
		seo.JSON(seo.FreeOffer(landing.Pricing.Name, landing.Pricing.Intro, site+"/criar", a.bundle.T(lang, "meta.currency"))),
		seo.JSON(seo.FAQPage(questions)),
	}

	mock := gift.New(a.codec.Today())
	mock.Title = a.bundle.T(lang, "mockup.title")
	mock.Message = a.bundle.T(lang, "mockup.message")
	mock.Photos = []string{"https://i.imgur.com/0lbIxMI.jpg"}
	mock.Date = a.codec.Now().AddDate(-2, -3, -12).Format("2006-01-02")

	a.views.render(w, r, http.StatusOK, "landing", "base", landingView{
		page:    p,
		Content: landing,
		Mockup:  a.preview(lang, mock),
	})
}

func (a *app) renderViewer(w http.ResponseWriter, r *http.Request, rec gift.Record) {
	lang := mw.Lang(r)
	p := a.newPage(w, r, rec.Title+" | CODELOVE", a.bundle.T(lang, "viewer.meta_description"))
	p.Meta = p.Meta.Private()
	p.BodyClass = "viewer bg-" + string(rec.Background)

	span, ok := gift.Elapsed(rec.Date, a.codec.Now())
	view := viewerView{
		page:       p,
		Gift:       rec,
		Span:       span,
		HasDate:    ok,
		CreateHref: "/criar",
	}
	if ok {
		view.StartDate = rec.Date
	}
	if rec.Background == gift.BackgroundEmojis {
		view.Emojis = splitEmojis(rec.CustomEmojis)
	}
	a.views.render(w, r, http.StatusOK, "viewer", "base", view)
}

func (a *app) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	p := a.newPage(w, r, a.bundle.T(lang, "error.not_found_title"), "")
	p.Meta = p.Meta.Private()
	a.views.render(w, r, http.StatusNotFound, "error", "base", errorView{
		page:    p,
		Status:  http.StatusNotFound,
		Heading: a.bundle.T(lang, "error.not_found_title"),
		Detail:  a.bundle.T(lang, "error.not_found_detail"),
	})
}
