package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/config"
	"github.com/Patrickog1992/CODELOVE1/internal/content"
	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	"github.com/Patrickog1992/CODELOVE1/internal/i18n"
	"github.com/Patrickog1992/CODELOVE1/internal/metrics"
	mw "github.com/Patrickog1992/CODELOVE1/internal/middleware"
	"github.com/Patrickog1992/CODELOVE1/internal/music"
	"github.com/Patrickog1992/CODELOVE1/internal/observability"
	"github.com/Patrickog1992/CODELOVE1/internal/photos"
	"github.com/Patrickog1992/CODELOVE1/internal/qrcode"
)

// qrFetcher downloads the rendered QR image for a target URL.
type qrFetcher interface {
	ImageURL(target string) string
	Fetch(ctx context.Context, target string) ([]byte, error)
}

type app struct {
	cfg    config.Config
	logger *zap.Logger

	bundle   *i18n.Bundle
	views    *views
	landing  *content.Store
	music    *music.Catalog
	codec    *gift.Codec
	sharer   *gift.Sharer
	qr       qrFetcher
	uploader *photos.Uploader
	store    string
	sessions *mw.Sessions
	metrics  *metrics.Metrics

	csrfEnabled bool
	closers     []io.Closer
}

type appOption func(*app)

// withClock pins the codec clock; used by tests.
func withClock(now func() time.Time) appOption {
	return func(a *app) {
		a.codec = gift.NewCodec(
			gift.WithPhotoPolicy(gift.ParsePhotoPolicy(a.cfg.Share.PhotoPolicy)),
			gift.WithLocation(a.cfg.Location()),
			gift.WithClock(now),
			gift.WithLogger(a.logger.Named("codec")),
		)
	}
}

func withQRClient(qr qrFetcher) appOption {
	return func(a *app) { a.qr = qr }
}

func withPhotoStore(name string, store photos.Store) appOption {
	return func(a *app) {
		a.store = name
		a.uploader = photos.NewUploader(a.newProcessor(), store, a.logger.Named("photos"))
	}
}

func withoutCSRF() appOption {
	return func(a *app) { a.csrfEnabled = false }
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...appOption) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &app{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics.New(),
		csrfEnabled: true,
	}

	bundle, err := i18n.Load(cfg.Site.LocalesDir, cfg.Site.DefaultLocale, cfg.Site.Locales)
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}
	a.bundle = bundle

	if a.views, err = newViews(cfg.Site.TemplatesDir, cfg.Dev, bundle); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if a.landing, err = content.NewStore(cfg.Site.ContentFile,
		content.WithFallback(cfg.Site.DefaultLocale),
		content.WithReload(cfg.Dev),
	); err != nil {
		return nil, fmt.Errorf("load landing content: %w", err)
	}
	if a.music, err = music.LoadCatalog(cfg.Site.MusicCatalog); err != nil {
		return nil, fmt.Errorf("load music catalog: %w", err)
	}

	a.codec = gift.NewCodec(
		gift.WithPhotoPolicy(gift.ParsePhotoPolicy(cfg.Share.PhotoPolicy)),
		gift.WithLocation(cfg.Location()),
		gift.WithLogger(logger.Named("codec")),
	)
	a.qr = qrcode.New(
		qrcode.WithEndpoint(cfg.Share.QREndpoint),
		qrcode.WithSize(cfg.Share.QRSize),
		qrcode.WithColors(cfg.Share.QRColor, cfg.Share.QRBackground),
		qrcode.WithMargin(cfg.Share.QRMargin),
		qrcode.WithTimeout(cfg.Share.QRTimeout),
		qrcode.WithRetries(cfg.Share.QRRetries),
		qrcode.WithLogger(logger.Named("qrcode")),
	)
	a.sessions = mw.NewSessions([]byte(cfg.Session.Key), cfg.Session.Secure)

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.uploader == nil {
		var store photos.Store = photos.InlineStore{}
		a.store = "inline"
		if cfg.Photos.Bucket != "" {
			bucket, err := photos.NewBucketStore(ctx, cfg.Photos.Bucket, nil, photos.WithPublicURL(cfg.Photos.PublicURL))
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, bucket)
			store = bucket
			a.store = "gcs"
		}
		a.uploader = photos.NewUploader(a.newProcessor(), store, logger.Named("photos"))
	}

	a.sharer = gift.NewSharer(a.codec, a.qr,
		gift.WithMaxURLLength(cfg.Share.QRMaxURLLength),
		gift.WithSizePolicy(gift.ParseSizePolicy(cfg.Share.SizePolicy)),
		gift.WithWarning(bundle.T(cfg.Site.DefaultLocale, "result.oversize_warning")),
	)
	return a, nil
}

func (a *app) newProcessor() *photos.Processor {
	return photos.NewProcessor(
		photos.WithMaxDimension(a.cfg.Photos.MaxDimension),
		photos.WithJPEGQuality(a.cfg.Photos.JPEGQuality),
		photos.WithMaxBytes(a.cfg.Photos.MaxUploadBytes),
	)
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP.
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLoggerMiddleware(a.logger.Named("http")))
	r.Use(observability.TraceMiddleware(a.cfg.ProjectID))
	r.Use(observability.RecoveryMiddleware(a.logger.Named("http")))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(a.metrics.Middleware)
	r.Use(mw.SecurityHeaders)
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(a.cfg.Server.RequestTimeout))
	r.Use(mw.HTMX)
	r.Use(mw.Locale(a.bundle, a.cfg.Session.Secure))
	r.Use(mw.VaryLocale)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", a.metrics.Handler())
	r.Handle("/assets/*", mw.AssetsWithCache("/assets", filepath.Join(a.cfg.Site.PublicDir, "assets")))

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json"))
		r.Use(chimw.RequestSize(a.maxBodyBytes()))
		r.Post("/gifts", a.apiCreateGift)
		r.Get("/gifts", a.apiGetGift)
		r.Get("/elapsed", a.apiElapsed)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.RequestSize(a.maxBodyBytes()))
		if a.csrfEnabled {
			r.Use(mw.CSRF(a.cfg.Session.CSRFKey, a.cfg.Session.Secure, a.trustedOrigins()))
		}
		r.Get("/", a.homeHandler)
		r.Get("/qr.png", a.qrDownloadHandler)
		r.Post("/acesso", a.accessSubmitHandler)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAccess(a.sessions, a.cfg.Access.Code != "", http.HandlerFunc(a.accessGateHandler)))
			r.Get("/criar", a.wizardStartHandler)
			r.Post("/criar", a.wizardStepHandler)
			r.Post("/criar/fotos", a.wizardUploadHandler)
			r.Post("/criar/fotos/remover", a.wizardRemovePhotoHandler)
			r.Get("/criar/musica", a.musicSearchHandler)
		})
	})

	r.NotFound(a.notFoundHandler)
	return r
}

// maxBodyBytes fits a full batch of photo uploads plus the form fields.
func (a *app) maxBodyBytes() int64 {
	return a.cfg.Photos.MaxUploadBytes*gift.MaxPhotos + 1<<20
}

func (a *app) trustedOrigins() []string {
	u, err := url.Parse(a.cfg.Site.BaseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
