package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/Patrickog1992/CODELOVE1/internal/config"
	"github.com/Patrickog1992/CODELOVE1/internal/gift"
)

var testNow = time.Date(2024, time.December, 25, 12, 0, 0, 0, time.UTC)

type stubQR struct {
	mu      sync.Mutex
	img     []byte
	err     error
	targets []string
}

func (s *stubQR) ImageURL(target string) string {
	return "https://qr.test/create?data=" + url.QueryEscape(target)
}

func (s *stubQR) Fetch(_ context.Context, target string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
	return s.img, s.err
}

func testConfig() config.Config {
	return config.Config{
		Env:      "test",
		LogLevel: "debug",
		Server:   config.ServerConfig{RequestTimeout: 10 * time.Second},
		Site: config.SiteConfig{
			BaseURL:       "https://codelove.test",
			TemplatesDir:  "../../templates",
			PublicDir:     "../../public",
			LocalesDir:    "../../locales",
			ContentFile:   "../../content/landing.yaml",
			MusicCatalog:  "../../content/music.yaml",
			DefaultLocale: "pt",
			Locales:       []string{"pt", "en"},
			TimeZone:      "UTC",
		},
		Share: config.ShareConfig{
			QRMaxURLLength: 1800,
			SizePolicy:     "lite",
			PhotoPolicy:    "links",
			QREndpoint:     "https://qr.test/create",
			QRSize:         300,
			QRColor:        "D42426",
			QRBackground:   "ffffff",
			QRMargin:       10,
			QRTimeout:      time.Second,
		},
		Photos: config.PhotosConfig{
			MaxUploadBytes: 10 << 20,
			MaxDimension:   800,
			JPEGQuality:    80,
		},
		Session: config.SessionConfig{
			Key:     strings.Repeat("s", 32),
			CSRFKey: strings.Repeat("c", 32),
		},
	}
}

// newTestServer builds the full router with templates and content from the repository.
func newTestServer(t *testing.T, mutate func(*config.Config), opts ...appOption) (*app, http.Handler) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	base := []appOption{withClock(func() time.Time { return testNow }), withQRClient(&stubQR{img: []byte("PNG")}), withoutCSRF()}
	a, err := newApp(context.Background(), cfg, nil, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, a.routes()
}

func get(h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(h http.Handler, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	return doc
}

func draftOf(t *testing.T, rec *httptest.ResponseRecorder) gift.Record {
	t.Helper()
	value, ok := document(t, rec).Find(`input[name="draft"]`).Attr("value")
	require.True(t, ok, "draft field missing; body=%s", rec.Body.String())
	draft, ok := decodeDraft(value)
	require.True(t, ok, "draft does not decode: %q", value)
	return draft
}

func TestHealthzOK(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
}

func TestLandingRendersPortugueseByDefault(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	doc := document(t, rec)
	require.Equal(t, "pt-BR", doc.Find("html").AttrOr("lang", ""))
	require.Contains(t, doc.Find("h1").First().Text(), "Presenteie com amor neste Natal")
	require.Contains(t, doc.Find("#faq h2").Text(), "Dúvidas Frequentes")
	require.Equal(t, "71.346", doc.Find("[data-social-proof] .count").Text())
	require.Equal(t, "gratuito", doc.Find(".faq-answer").Eq(3).Find("strong").Text())

	require.Equal(t, 4, doc.Find(`script[type="application/ld+json"]`).Length())
	var org map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc.Find(`script[type="application/ld+json"]`).First().Text()), &org))
	require.Equal(t, "Organization", org["@type"])

	require.Equal(t, "2", doc.Find(".hero-mockup [data-years]").Text())
	require.Equal(t, "3", doc.Find(".hero-mockup [data-months]").Text())
	require.Equal(t, "12", doc.Find(".hero-mockup [data-days]").Text())
	require.Equal(t, "pt", rec.Header().Get("Content-Language")[:2])
}

func TestLandingLocalizedEN(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/", map[string]string{"Accept-Language": "en-US,en;q=0.9"})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	require.Contains(t, doc.Find("h1").First().Text(), "Give with love this Christmas")
	require.Equal(t, "How it works", strings.TrimSpace(doc.Find(`.site-nav a[href="/#como-funciona"]`).Text()))
}

func TestViewerRendersGift(t *testing.T) {
	a, srv := newTestServer(t, nil)
	payload, err := a.codec.Encode(gift.Record{
		Title:      "Ana & Léo",
		Message:    "Feliz Natal <3",
		Date:       "2022-09-13",
		Photos:     []string{"https://i.imgur.com/0lbIxMI.jpg"},
		PhotoMode:  gift.PhotoModeCube,
		Music:      "Jingle Bells - James Lord Pierpont",
		Background: gift.BackgroundHearts,
	})
	require.NoError(t, err)

	rec := get(srv, "/?gift="+payload, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)
	require.Equal(t, "Ana & Léo | CODELOVE", doc.Find("title").Text())
	require.Equal(t, "noindex, nofollow", doc.Find(`meta[name="robots"]`).AttrOr("content", ""))
	require.Equal(t, 0, doc.Find(`link[rel="canonical"]`).Length())
	require.Equal(t, "Ana & Léo", doc.Find(".gift-title").Text())
	require.Equal(t, "Feliz Natal <3", doc.Find(".gift-message").Text())
	require.Equal(t, 1, doc.Find(".gallery.mode-cube .slide").Length())
	require.Equal(t, "hearts", doc.Find(".effects").AttrOr("data-background", ""))
	require.Equal(t, "2022-09-13", doc.Find(".together [data-elapsed]").AttrOr("data-start", ""))
	require.Equal(t, "2", doc.Find(".together [data-years]").Text())
	require.Equal(t, "3", doc.Find(".together [data-months]").Text())
	require.Equal(t, "12", doc.Find(".together [data-days]").Text())
	require.Contains(t, doc.Find("body").AttrOr("class", ""), "bg-hearts")
}

func TestViewerCustomEmojis(t *testing.T) {
	a, srv := newTestServer(t, nil)
	payload, err := a.codec.Encode(gift.Record{Title: "Oi", Background: gift.BackgroundEmojis, CustomEmojis: "🎄 🎅 ⭐"})
	require.NoError(t, err)
	doc := document(t, get(srv, "/?gift="+payload, nil))
	require.Equal(t, "🎄 🎅 ⭐", doc.Find(".effects").AttrOr("data-emojis", ""))
}

func TestInvalidGiftFallsBackToLanding(t *testing.T) {
	_, srv := newTestServer(t, nil)
	landing := func(target string) {
		rec := get(srv, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		require.Contains(t, document(t, rec).Find("h1").First().Text(), "Presenteie com amor", target)
	}

	landing("/?gift=")
	require.Equal(t, http.StatusNotFound, get(srv, "/api/gifts?gift=", nil).Code)
	require.Contains(t, get(srv, "/metrics", nil).Body.String(), "codelove_gift_decode_failures_total 0")

	for _, target := range []string{"/?gift=!!!", "/?gift=bm90LWpzb24"} {
		landing(target)
	}
	require.Contains(t, get(srv, "/metrics", nil).Body.String(), "codelove_gift_decode_failures_total 2")
}

func TestNotFoundPage(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/nao-existe", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Página não encontrada")
}

func TestWizardStartsAtFirstStep(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/criar", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)
	require.Equal(t, "Passo 1 de 8", doc.Find(".counter-label").Text())
	require.Equal(t, "Titulo da página", doc.Find(".wizard-head h1").Text())
	require.Equal(t, 8, doc.Find(".dots .dot").Length())
	require.Equal(t, "Seu Título Aqui", doc.Find(".wizard-preview .phone-title").Text())
	require.Equal(t, "noindex, nofollow", doc.Find(`meta[name="robots"]`).AttrOr("content", ""))

	draft := draftOf(t, rec)
	require.Equal(t, "2024-12-25", draft.Date)
	require.Equal(t, gift.PhotoModeCoverflow, draft.PhotoMode)
	require.Equal(t, gift.BackgroundNone, draft.Background)
}

func TestWizardNextKeepsDraft(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := postForm(srv, "/criar", url.Values{
		"draft":  {encodeDraft(gift.New("2024-12-25"))},
		"step":   {"0"},
		"title":  {"  Ana & Léo  "},
		"action": {"next"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)
	require.Equal(t, "Passo 2 de 8", doc.Find(".counter-label").Text())
	require.Equal(t, "Ana & Léo", doc.Find(".wizard-preview .phone-title").Text())
	require.Equal(t, "Ana & Léo", draftOf(t, rec).Title)
	require.Equal(t, "25", doc.Find(".wizard-progress").AttrOr("aria-valuenow", ""))
}

func TestWizardHTMXRendersPanelOnly(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := postForm(srv, "/criar", url.Values{"step": {"1"}, "message": {"Oi"}, "action": {"next"}}, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.NotContains(t, body, "<html")
	require.Contains(t, body, "Passo 3 de 8")
	require.Equal(t, "Oi", draftOf(t, rec).Message)
}

func TestWizardPrevFromFirstStepGoesHome(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := postForm(srv, "/criar", url.Values{"step": {"0"}, "action": {"prev"}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	rec = postForm(srv, "/criar", url.Values{"step": {"0"}, "action": {"prev"}}, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "/", rec.Header().Get("HX-Redirect"))
}

func TestWizardGotoOnlyMovesBack(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := postForm(srv, "/criar", url.Values{"step": {"4"}, "goto": {"1"}}, nil)
	require.Contains(t, document(t, rec).Find(".counter-label").Text(), "Passo 2 de 8")

	rec = postForm(srv, "/criar", url.Values{"step": {"2"}, "goto": {"6"}}, nil)
	require.Contains(t, document(t, rec).Find(".counter-label").Text(), "Passo 3 de 8")
}

func TestWizardValidatesEmail(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := postForm(srv, "/criar", url.Values{"step": {"6"}, "email": {"not-an-email"}, "action": {"next"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	require.Equal(t, "E-mail inválido.", doc.Find(".form-error").Text())
	require.Equal(t, "Passo 7 de 8", doc.Find(".counter-label").Text())
	require.Equal(t, "not-an-email", draftOf(t, rec).Email)
}

func TestWizardFinishShowsShareLink(t *testing.T) {
	a, srv := newTestServer(t, nil)
	draft := gift.New("2024-12-25")
	draft.Title = "Ana & Léo"
	draft.Message = "Feliz Natal ❤️"
	draft.Date = "2022-09-13"
	draft.Email = "ana@example.com"

	rec := postForm(srv, "/criar", url.Values{
		"draft":  {encodeDraft(draft)},
		"step":   {"7"},
		"plan":   {"lifetime"},
		"action": {"next"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)

	link := doc.Find("#share-url").AttrOr("value", "")
	require.True(t, strings.HasPrefix(link, "https://codelove.test/?gift="), link)
	u, err := url.Parse(link)
	require.NoError(t, err)
	got, ok := a.codec.DecodeQuery(u.Query())
	require.True(t, ok)
	require.Equal(t, "Ana & Léo", got.Title)
	require.Equal(t, "Feliz Natal ❤️", got.Message)
	require.Equal(t, "2022-09-13", got.Date)
	require.Empty(t, got.Email)
	require.NotContains(t, link, "ana%40example.com")

	require.True(t, strings.HasPrefix(doc.Find("#qr-image").AttrOr("src", ""), "https://qr.test/create?data="))
	require.Equal(t, "/qr.png?gift="+u.Query().Get("gift"), doc.Find("#qr-download").AttrOr("href", ""))
	require.Equal(t, 0, doc.Find(".form-warning").Length())
}

func TestWizardFinishWarnsOnOversizeLink(t *testing.T) {
	a, srv := newTestServer(t, nil)
	draft := gift.New("2024-12-25")
	draft.Title = "Longo"
	draft.Message = strings.Repeat("ção ", 300)

	rec := postForm(srv, "/criar", url.Values{"draft": {encodeDraft(draft)}, "step": {"7"}, "action": {"finish"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	require.Contains(t, doc.Find(".form-warning").Text(), "muito longa para o QR Code")

	href := doc.Find("#qr-download").AttrOr("href", "")
	u, err := url.Parse(href)
	require.NoError(t, err)
	lite, err := a.codec.Decode(u.Query().Get("gift"))
	require.NoError(t, err)
	require.Equal(t, gift.LiteMessagePlaceholder, lite.Message)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 212, G: 36, B: 38, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartUpload(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestWizardUploadAddsInlinePhoto(t *testing.T) {
	_, srv := newTestServer(t, nil)
	body, ct := multipartUpload(t, map[string]string{"draft": encodeDraft(gift.New("2024-12-25")), "step": "3"},
		map[string][]byte{"arvore.png": pngBytes(t, 1200, 600)})
	req := httptest.NewRequest(http.MethodPost, "/criar/fotos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)
	require.Equal(t, "1 foto(s) adicionada(s).", doc.Find(".form-notice").Text())
	draft := draftOf(t, rec)
	require.Len(t, draft.Photos, 1)
	require.True(t, strings.HasPrefix(draft.Photos[0], "data:image/jpeg;base64,"))
	require.Equal(t, 1, doc.Find(".thumbs li").Length())
	require.Contains(t, get(srv, "/metrics", nil).Body.String(), `codelove_photos_stored_total{result="ok",store="inline"} 1`)
}

func TestWizardUploadRejectsNonImage(t *testing.T) {
	_, srv := newTestServer(t, nil)
	body, ct := multipartUpload(t, map[string]string{"step": "3"}, map[string][]byte{"notes.txt": []byte("hello")})
	req := httptest.NewRequest(http.MethodPost, "/criar/fotos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Formato de imagem não suportado.", document(t, rec).Find(".form-error").Text())
	require.Empty(t, draftOf(t, rec).Photos)
}

func TestWizardRemovePhoto(t *testing.T) {
	_, srv := newTestServer(t, nil)
	draft := gift.New("2024-12-25")
	draft.AddPhotos("https://cdn.test/a.jpg", "https://cdn.test/b.jpg", "https://cdn.test/c.jpg")
	rec := postForm(srv, "/criar/fotos/remover", url.Values{"draft": {encodeDraft(draft)}, "index": {"1"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"https://cdn.test/a.jpg", "https://cdn.test/c.jpg"}, draftOf(t, rec).Photos)
}

func TestMusicSearchFragment(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/criar/musica?q=jingle", map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	require.Contains(t, doc.Find(".suggestion.is-catalog").First().Text(), "Jingle Bells - James Lord Pierpont")

	rec = get(srv, "/criar/musica?q=ab", nil)
	require.Contains(t, rec.Body.String(), "pelo menos 3 letras")
}

func TestWizardPickSuggestion(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := postForm(srv, "/criar", url.Values{"step": {"4"}, "q": {"xyzzy"}, "pick": {"0"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	draft := draftOf(t, rec)
	require.Equal(t, "xyzzy - Original Mix", draft.Music)
	require.Equal(t, "Passo 5 de 8", document(t, rec).Find(".counter-label").Text())
}

func TestAccessCodeGate(t *testing.T) {
	_, srv := newTestServer(t, func(cfg *config.Config) { cfg.Access.Code = "natal2024" })

	rec := get(srv, "/criar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, document(t, rec).Find("#access-form").Length())

	rec = postForm(srv, "/criar", url.Values{"step": {"0"}, "action": {"next"}}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = postForm(srv, "/acesso", url.Values{"code": {"errado"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Código incorreto. Tente novamente.")

	rec = postForm(srv, "/acesso", url.Values{"code": {"  NATAL2024 "}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/criar", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/criar", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	require.Equal(t, "Passo 1 de 8", doc.Find(".counter-label").Text())
	require.Equal(t, "Acesso liberado! Vamos criar o seu presente. 🎄", doc.Find(".flashes .flash-success").Text())

	// the welcome flash is shown once
	popped := rec.Result().Cookies()
	require.NotEmpty(t, popped)
	req = httptest.NewRequest(http.MethodGet, "/criar", nil)
	for _, c := range popped {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, document(t, rec).Find(".flashes").Length())
}

func TestQRDownload(t *testing.T) {
	qr := &stubQR{img: []byte("\x89PNG fake")}
	a, srv := newTestServer(t, nil, withQRClient(qr))
	payload, err := a.codec.Encode(gift.Record{Title: "Oi", Date: "2023-01-01"})
	require.NoError(t, err)

	rec := get(srv, "/qr.png?gift="+payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="presente-natal-qrcode.png"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "\x89PNG fake", rec.Body.String())
	require.Equal(t, []string{"https://codelove.test/?gift=" + payload}, qr.targets)

	rec = get(srv, "/qr.png?gift=%%%", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, qr.targets, 1)
}

func TestQRDownloadUpstreamFailure(t *testing.T) {
	a, srv := newTestServer(t, nil, withQRClient(&stubQR{err: errors.New("boom")}))
	payload, err := a.codec.Encode(gift.Record{Title: "Oi"})
	require.NoError(t, err)
	rec := get(srv, "/qr.png?gift="+payload, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAPICreateAndReadGift(t *testing.T) {
	_, srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/gifts", strings.NewReader(`{"title":"Ana","message":"Oi","date":"2020-02-29","background":"aurora"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var link struct {
		URL      string `json:"url"`
		QRTarget string `json:"qrTarget"`
		Length   int    `json:"length"`
		Degraded bool   `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	require.Equal(t, link.URL, link.QRTarget)
	require.Equal(t, len(link.URL), link.Length)
	require.False(t, link.Degraded)

	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	rec = get(srv, "/api/gifts?"+u.RawQuery, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got gift.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Ana", got.Title)
	require.Equal(t, gift.BackgroundAurora, got.Background)
}

func TestAPIErrors(t *testing.T) {
	_, srv := newTestServer(t, nil)

	rec := get(srv, "/api/gifts?gift=nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "gift_not_found", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/gifts", strings.NewReader(`{"title":"x","date":"31/12/2020"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/gifts", strings.NewReader(`title=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAPIElapsed(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/api/elapsed?date=2022-09-13", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"years":2,"months":3,"days":12,"valid":true}`, rec.Body.String())

	rec = get(srv, "/api/elapsed?date=ontem", nil)
	require.JSONEq(t, `{"years":0,"months":0,"days":0,"valid":false}`, rec.Body.String())
}

func TestCSRFRejectsFormWithoutToken(t *testing.T) {
	cfg := testConfig()
	a, err := newApp(context.Background(), cfg, nil, withQRClient(&stubQR{}))
	require.NoError(t, err)
	srv := a.routes()

	rec := get(srv, "/criar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token, ok := document(t, rec).Find(`input[name="csrf_token"]`).Attr("value")
	require.True(t, ok)
	require.NotEmpty(t, token)

	rec = postForm(srv, "/criar", url.Values{"step": {"0"}, "action": {"next"}}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The JSON API is outside the CSRF group.
	req := httptest.NewRequest(http.MethodPost, "/api/gifts", strings.NewReader(`{"title":"Oi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestAssetsServedWithETag(t *testing.T) {
	_, srv := newTestServer(t, nil)
	rec := get(srv, "/assets/js/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = get(srv, "/assets/js/app.js", map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusNotModified, rec.Code)
}

func TestSplitEmojis(t *testing.T) {
	require.Equal(t, []string{"🎄", "🎅", "⭐"}, splitEmojis("🎄🎅⭐"))
	require.Equal(t, []string{"❤️", "🎁"}, splitEmojis("❤️🎁"))
	require.Equal(t, []string{"a", "b"}, splitEmojis(" a b "))
	require.Len(t, splitEmojis(strings.Repeat("⭐", 20)), 12)
}

type memoryStore struct {
	puts []string
}

func (s *memoryStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	s.puts = append(s.puts, contentType)
	return "https://cdn.codelove.test/gifts/" + strings.Repeat("x", len(s.puts)) + ".jpg", nil
}

func TestWizardUploadUsesConfiguredStore(t *testing.T) {
	store := &memoryStore{}
	_, srv := newTestServer(t, nil, withPhotoStore("memory", store))

	draft := gift.New("2024-12-25")
	draft.AddPhotos("https://cdn.test/1.jpg", "https://cdn.test/2.jpg", "https://cdn.test/3.jpg",
		"https://cdn.test/4.jpg", "https://cdn.test/5.jpg", "https://cdn.test/6.jpg", "https://cdn.test/7.jpg")
	body, ct := multipartUpload(t, map[string]string{"draft": encodeDraft(draft)},
		map[string][]byte{"a.png": pngBytes(t, 40, 40), "b.png": pngBytes(t, 40, 40)})
	req := httptest.NewRequest(http.MethodPost, "/criar/fotos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"image/jpeg"}, store.puts)
	got := draftOf(t, rec)
	require.Len(t, got.Photos, gift.MaxPhotos)
	require.Equal(t, "https://cdn.codelove.test/gifts/x.jpg", got.Photos[7])
	doc := document(t, rec)
	require.Equal(t, "Você pode adicionar no máximo 8 fotos.", doc.Find(".form-error").Text())
	require.Equal(t, 1, doc.Find(`#f-photos[disabled]`).Length())
}

func TestWizardFinishFlagsInlinePhotosLeftOutOfLink(t *testing.T) {
	a, srv := newTestServer(t, nil)
	body, ct := multipartUpload(t, map[string]string{"draft": encodeDraft(gift.New("2024-12-25")), "step": "3"},
		map[string][]byte{"presepio.png": pngBytes(t, 64, 64)})
	req := httptest.NewRequest(http.MethodPost, "/criar/fotos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	draft := draftOf(t, rec)
	require.Len(t, draft.Photos, 1)

	rec = postForm(srv, "/criar", url.Values{
		"draft":  {encodeDraft(draft)},
		"step":   {"3"},
		"action": {"finish"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)

	u, err := url.Parse(doc.Find("#share-url").AttrOr("value", ""))
	require.NoError(t, err)
	shared, ok := a.codec.DecodeQuery(u.Query())
	require.True(t, ok)
	require.Empty(t, shared.Photos)

	require.Equal(t, 0, doc.Find(".result-preview .phone-photo").Length())
	notice := doc.Find(".photos-dropped").Text()
	require.True(t, strings.HasPrefix(notice, "1 foto(s) enviada(s) ficaram fora do link"), notice)
}

func TestWizardFinishKeepsHostedPhotosInPreview(t *testing.T) {
	_, srv := newTestServer(t, nil)
	draft := gift.New("2024-12-25")
	draft.AddPhotos("https://cdn.codelove.test/a.jpg")

	rec := postForm(srv, "/criar", url.Values{"draft": {encodeDraft(draft)}, "step": {"3"}, "action": {"finish"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := document(t, rec)
	require.Equal(t, 1, doc.Find(".result-preview .phone-photo").Length())
	require.Equal(t, 0, doc.Find(".photos-dropped").Length())
}
