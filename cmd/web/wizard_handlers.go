package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/format"
	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	mw "github.com/Patrickog1992/CODELOVE1/internal/middleware"
	"github.com/Patrickog1992/CODELOVE1/internal/music"
	"github.com/Patrickog1992/CODELOVE1/internal/nav"
	"github.com/Patrickog1992/CODELOVE1/internal/photos"
	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
)

// The wizard keeps no server state: the whole record, photos included, round-trips
// in the hidden "draft" field as base64url JSON.
func encodeDraft(rec gift.Record) string {
	raw, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeDraft(value string) (gift.Record, bool) {
	value = strings.TrimRight(strings.TrimSpace(value), "=")
	if value == "" {
		return gift.Record{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return gift.Record{}, false
	}
	var rec gift.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return gift.Record{}, false
	}
	return rec.Normalize(), true
}

type wizardState struct {
	Step   int
	Record gift.Record
	Query  string
}

func (a *app) readWizard(r *http.Request) wizardState {
	rec, ok := decodeDraft(r.FormValue("draft"))
	if !ok {
		rec = gift.New(a.codec.Today())
	}
	step, _ := strconv.Atoi(r.FormValue("step"))
	return wizardState{Step: clampStep(step), Record: rec, Query: strings.TrimSpace(r.FormValue("q"))}
}

func clampStep(step int) int {
	if step < 0 {
		return 0
	}
	if step >= wizardSteps {
		return wizardSteps - 1
	}
	return step
}

// applyForm copies the fields the current step posted. Absent fields keep their
// draft values.
func applyForm(rec *gift.Record, form url.Values) {
	if v, ok := form["title"]; ok {
		rec.Title = v[0]
	}
	if v, ok := form["message"]; ok {
		rec.Message = strings.ReplaceAll(v[0], "\r\n", "\n")
	}
	if v, ok := form["date"]; ok {
		rec.Date = v[0]
	}
	if v, ok := form["photoMode"]; ok {
		rec.PhotoMode = gift.PhotoMode(v[0])
	}
	if v, ok := form["music"]; ok {
		rec.Music = v[0]
	}
	if v, ok := form["musicUrl"]; ok {
		rec.MusicURL = v[0]
	}
	if v, ok := form["background"]; ok {
		rec.Background = gift.Background(v[0])
	}
	if v, ok := form["customEmojis"]; ok {
		rec.CustomEmojis = strings.TrimSpace(v[0])
	}
	if v, ok := form["email"]; ok {
		rec.Email = v[0]
	}
	if v, ok := form["plan"]; ok {
		rec.SelectedPlan = gift.Plan(v[0])
	}
	*rec = rec.Normalize()
}

// validateStep returns the i18n key of the problem with the step's input, if any.
func (a *app) validateStep(step int, rec gift.Record) string {
	switch stepKeys[step] {
	case "date":
		if rec.Date != "" {
			if _, ok := gift.ParseDate(rec.Date, a.cfg.Location()); !ok {
				return "wizard.error.date"
			}
		}
	case "music":
		if rec.MusicURL != "" {
			if u, err := url.Parse(rec.MusicURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
				return "wizard.error.music_url"
			}
		}
	case "contact":
		if rec.Email != "" {
			if _, err := mail.ParseAddress(rec.Email); err != nil {
				return "wizard.error.email"
			}
		}
	}
	return ""
}

func (a *app) wizardStartHandler(w http.ResponseWriter, r *http.Request) {
	st := wizardState{Record: gift.New(a.codec.Today())}
	if step, err := strconv.Atoi(r.URL.Query().Get("passo")); err == nil {
		st.Step = clampStep(step - 1)
	}
	a.renderWizard(w, r, st, "", "")
}

// parseWizardForm accepts both encodings the wizard form can post with.
func parseWizardForm(r *http.Request) error {
	err := r.ParseMultipartForm(32 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func (a *app) wizardStepHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseWizardForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	st := a.readWizard(r)
	applyForm(&st.Record, r.PostForm)

	if pick := r.PostForm.Get("pick"); pick != "" {
		if i, err := strconv.Atoi(pick); err == nil {
			if suggestions := a.music.Search(st.Query); i >= 0 && i < len(suggestions) {
				st.Record.Music = suggestions[i].Name
				st.Record.MusicURL = suggestions[i].URL
				st.Query = ""
			}
		}
		a.renderWizard(w, r, st, "", "")
		return
	}

	// Progress dots jump back to a visited step without validating the current one.
	if target, err := strconv.Atoi(r.PostForm.Get("goto")); err == nil {
		if target < st.Step {
			st.Step = clampStep(target)
		}
		a.renderWizard(w, r, st, "", "")
		return
	}

	switch r.PostForm.Get("action") {
	case "prev":
		if st.Step == 0 {
			mw.Redirect(w, r, "/")
			return
		}
		st.Step--
	case "next", "finish":
		if key := a.validateStep(st.Step, st.Record); key != "" {
			a.renderWizard(w, r, st, a.bundle.T(mw.Lang(r), key), "")
			return
		}
		if st.Step == wizardSteps-1 || r.PostForm.Get("action") == "finish" {
			a.finishWizard(w, r, st.Record)
			return
		}
		st.Step++
	}
	a.renderWizard(w, r, st, "", "")
}

func (a *app) wizardUploadHandler(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	st := a.readWizard(r)
	applyForm(&st.Record, r.PostForm)
	st.Step = 3

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		a.renderWizard(w, r, st, a.bundle.T(lang, "wizard.error.no_photos"), "")
		return
	}
	capacity := gift.MaxPhotos - len(st.Record.Photos)
	urls, err := a.uploader.Upload(r.Context(), capacity, files)
	st.Record.AddPhotos(urls...)
	a.metrics.PhotoStored(a.store, err)

	var msg, notice string
	switch {
	case err == nil:
		notice = a.bundle.Tf(lang, "wizard.notice.photos_added", len(urls))
	case errors.Is(err, photos.ErrTooManyPhotos):
		msg = a.bundle.Tf(lang, "wizard.error.too_many_photos", gift.MaxPhotos)
	case errors.Is(err, photos.ErrTooLarge):
		msg = a.bundle.Tf(lang, "wizard.error.photo_too_large", format.FmtBytes(a.cfg.Photos.MaxUploadBytes))
	case errors.Is(err, photos.ErrUnsupported):
		msg = a.bundle.T(lang, "wizard.error.unsupported_photo")
	default:
		requestctx.Logger(r.Context()).Error("photo upload failed", zap.Error(err))
		msg = a.bundle.T(lang, "wizard.error.upload_failed")
	}
	a.renderWizard(w, r, st, msg, notice)
}

func (a *app) wizardRemovePhotoHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseWizardForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	st := a.readWizard(r)
	applyForm(&st.Record, r.PostForm)
	st.Step = 3
	if i, err := strconv.Atoi(r.PostForm.Get("index")); err == nil {
		st.Record.RemovePhoto(i)
	}
	a.renderWizard(w, r, st, "", "")
}

func (a *app) musicSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	a.views.render(w, r, http.StatusOK, "wizard", "music-suggestions", musicView{
		Lang:        mw.Lang(r),
		Query:       q,
		Suggestions: a.music.Search(q),
	})
}

type musicView struct {
	Lang        string
	Query       string
	Suggestions []music.Suggestion
}

func (a *app) renderWizard(w http.ResponseWriter, r *http.Request, st wizardState, errMsg, notice string) {
	lang := mw.Lang(r)
	key := stepKeys[st.Step]
	p := a.newPage(w, r, a.bundle.T(lang, "wizard.meta_title"), a.bundle.T(lang, "meta.description"))
	p.Meta = p.Meta.Private()
	p.BodyClass = "wizard"

	rec := st.Record
	view := wizardView{
		page: p,
		Step: wizardStep{
			Index:       st.Step,
			Key:         key,
			Title:       a.bundle.T(lang, "wizard.step."+key+".title"),
			Description: a.bundle.T(lang, "wizard.step."+key+".description"),
		},
		Total:       wizardSteps,
		Progress:    nav.Progress(st.Step, wizardSteps),
		Percent:     nav.Percent(st.Step, wizardSteps),
		Draft:       encodeDraft(rec),
		Record:      rec,
		Preview:     a.preview(lang, rec),
		PhotoModes:  a.photoModeOptions(lang, rec.PhotoMode),
		Backgrounds: a.backgroundOptions(lang, rec.Background),
		Plans:       a.planOptions(lang, rec.SelectedPlan),
		MusicQuery:  st.Query,
		Error:       errMsg,
		Notice:      notice,
		MaxPhotos:   gift.MaxPhotos,
		PhotosLeft:  gift.MaxPhotos - len(rec.Photos),
		MaxUpload:   a.cfg.Photos.MaxUploadBytes,
		IsFirst:     st.Step == 0,
		IsLast:      st.Step == wizardSteps-1,
	}
	if key == "music" && st.Query != "" {
		view.Suggestions = a.music.Search(st.Query)
	}
	name := "base"
	if mw.IsHTMX(r.Context()) {
		name = "wizard-panel"
	}
	a.views.render(w, r, http.StatusOK, "wizard", name, view)
}

func (a *app) finishWizard(w http.ResponseWriter, r *http.Request, rec gift.Record) {
	lang := mw.Lang(r)
	base := a.baseURL(r)
	link, err := a.sharer.Share(base, rec)
	if err != nil {
		requestctx.Logger(r.Context()).Error("share link failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	a.metrics.ObserveShare(link)
	if link.Oversize {
		link.Warning = a.bundle.T(lang, "result.oversize_warning")
	}
	requestctx.Logger(r.Context()).Info("gift created",
		zap.Int("url_length", link.Length),
		zap.Bool("degraded", link.Degraded),
		zap.Int("photos", len(rec.Photos)),
		zap.Int("photos_dropped", link.DroppedPhotos),
		zap.String("plan", string(rec.SelectedPlan)),
	)

	p := a.newPage(w, r, a.bundle.T(lang, "result.meta_title"), "")
	p.Meta = p.Meta.Private()
	p.BodyClass = "result"
	// The preview shows what the recipient will see, not the draft.
	shared := rec.Clone()
	shared.Photos = a.codec.SharedPhotos(rec.Photos)
	view := resultView{
		page:      p,
		Link:      link,
		Preview:   a.preview(lang, shared),
		Localhost: isLocalhost(base),
	}
	if link.DroppedPhotos > 0 {
		view.PhotosNotice = a.bundle.Tf(lang, "result.photos_dropped", link.DroppedPhotos)
	}
	if target, err := url.Parse(link.QRTarget); err == nil {
		view.QRDownload = "/qr.png?" + gift.QueryParam + "=" + target.Query().Get(gift.QueryParam)
	}
	name := "base"
	if mw.IsHTMX(r.Context()) {
		w.Header().Set("HX-Retarget", "body")
		w.Header().Set("HX-Reswap", "innerHTML")
		name = "result-body"
	}
	a.views.render(w, r, http.StatusOK, "result", name, view)
}
