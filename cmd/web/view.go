package main

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/Patrickog1992/CODELOVE1/internal/content"
	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	mw "github.com/Patrickog1992/CODELOVE1/internal/middleware"
	"github.com/Patrickog1992/CODELOVE1/internal/music"
	"github.com/Patrickog1992/CODELOVE1/internal/nav"
	"github.com/Patrickog1992/CODELOVE1/internal/seo"
)

// page carries what the base layout needs on every response.
type page struct {
	Lang        string
	HTMLLang    string
	Path        string
	Meta        seo.Meta
	Nav         []nav.RenderedItem
	Locales     []string
	CSRFField   template.HTML
	CSRFToken   string
	Flashes     []mw.Flash
	AnalyticsID string
	BodyClass   string
}

func (a *app) newPage(w http.ResponseWriter, r *http.Request, title, description string) page {
	lang := mw.Lang(r)
	p := page{
		Lang:        lang,
		HTMLLang:    a.bundle.HTMLLang(lang),
		Path:        r.URL.Path,
		Meta:        seo.Page(title, description, a.absURL(r, r.URL.Path), a.bundle.T(lang, "meta.og_locale")),
		Nav:         nav.Build(r.URL.Path),
		Locales:     a.bundle.Supported(),
		AnalyticsID: a.cfg.Site.AnalyticsID,
	}
	if a.csrfEnabled {
		p.CSRFField = mw.CSRFField(r)
		p.CSRFToken = mw.CSRFToken(r)
	}
	if a.sessions != nil {
		p.Flashes = a.sessions.Flashes(w, r)
	}
	return p
}

type landingView struct {
	page
	Content content.Landing
	Mockup  previewView
}

type viewerView struct {
	page
	Gift       gift.Record
	Span       gift.Span
	HasDate    bool
	StartDate  string
	Emojis     []string
	CreateHref string
}

type accessView struct {
	page
	Error bool
}

type errorView struct {
	page
	Status  int
	Heading string
	Detail  string
}

// wizardStep describes one screen of the builder.
type wizardStep struct {
	Index       int
	Key         string
	Title       string
	Description string
}

const wizardSteps = 8

var stepKeys = [wizardSteps]string{"title", "message", "date", "photos", "music", "background", "contact", "plan"}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type wizardView struct {
	page
	Step        wizardStep
	Total       int
	Progress    []nav.Dot
	Percent     int
	Draft       string
	Record      gift.Record
	Preview     previewView
	PhotoModes  []option
	Backgrounds []option
	Plans       []option
	MusicQuery  string
	Suggestions []music.Suggestion
	Error       string
	Notice      string
	MaxPhotos   int
	PhotosLeft  int
	MaxUpload   int64
	IsFirst     bool
	IsLast      bool
}

// previewView is the phone mock rendered next to every wizard step and on the landing.
type previewView struct {
	Lang       string
	Title      string
	Message    string
	Photo      string
	PhotoCount int
	Music      string
	Span       gift.Span
	HasDate    bool
	StartDate  string
	Background string
}

type resultView struct {
	page
	Link       gift.ShareLink
	Preview    previewView
	QRDownload string
	Localhost  bool
	// PhotosNotice explains photos that stay out of the link.
	PhotosNotice string
}

func (a *app) preview(lang string, rec gift.Record) previewView {
	p := previewView{
		Lang:       lang,
		Title:      rec.Title,
		Message:    rec.Message,
		PhotoCount: len(rec.Photos),
		Music:      rec.Music,
		Background: string(rec.Background),
		StartDate:  rec.Date,
	}
	if p.Title == "" {
		p.Title = a.bundle.T(lang, "preview.title_placeholder")
	}
	if p.Message == "" {
		p.Message = a.bundle.T(lang, "preview.message_placeholder")
	}
	if len(rec.Photos) > 0 {
		p.Photo = rec.Photos[0]
	}
	p.Span, p.HasDate = gift.Elapsed(rec.Date, a.codec.Now())
	return p
}

func (a *app) photoModeOptions(lang string, selected gift.PhotoMode) []option {
	var out []option
	for _, m := range gift.PhotoModes() {
		out = append(out, option{Value: string(m), Label: a.bundle.T(lang, "photo_mode."+string(m)), Selected: m == selected})
	}
	return out
}

func (a *app) backgroundOptions(lang string, selected gift.Background) []option {
	var out []option
	for _, b := range gift.Backgrounds() {
		out = append(out, option{Value: string(b), Label: a.bundle.T(lang, "background."+string(b)), Selected: b == selected})
	}
	return out
}

func (a *app) planOptions(lang string, selected gift.Plan) []option {
	plans := []gift.Plan{gift.PlanLifetime, gift.PlanAnnual}
	out := make([]option, 0, len(plans))
	for _, p := range plans {
		out = append(out, option{Value: string(p), Label: a.bundle.T(lang, "plan."+string(p)), Selected: p == selected})
	}
	return out
}

// baseURL is the origin share links point at: the configured one, or the request's.
func (a *app) baseURL(r *http.Request) string {
	if a.cfg.Site.BaseURL != "" {
		return a.cfg.Site.BaseURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (a *app) absURL(r *http.Request, path string) string {
	return strings.TrimRight(a.baseURL(r), "/") + path
}

func isLocalhost(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// splitEmojis breaks the custom emoji field into the symbols the background rains.
func splitEmojis(s string) []string {
	fields := strings.Fields(s)
	if len(fields) > 1 {
		return fields
	}
	var out []string
	for _, r := range strings.TrimSpace(s) {
		if r == '\uFE0F' || r == '\u200D' {
			if len(out) > 0 {
				out[len(out)-1] += string(r)
			}
			continue
		}
		if len(out) > 0 && strings.HasSuffix(out[len(out)-1], "\u200D") {
			out[len(out)-1] += string(r)
			continue
		}
		out = append(out, string(r))
	}
	if len(out) > 12 {
		out = out[:12]
	}
	return out
}
