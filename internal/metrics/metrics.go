// Package metrics exposes Prometheus counters for gift creation and viewing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Patrickog1992/CODELOVE1/internal/gift"
)

const namespace = "codelove"

// Metrics owns a registry so tests and multiple routers do not collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	giftsShared     *prometheus.CounterVec
	shareURLLength  prometheus.Histogram
	giftsViewed     prometheus.Counter
	decodeFailures  prometheus.Counter
	photosStored    *prometheus.CounterVec
	qrDownloads     *prometheus.CounterVec
	accessAttempts  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		giftsShared: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gifts_shared_total",
			Help:      "Share links generated, by QR outcome.",
		}, []string{"qr"}),
		shareURLLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "share_url_length_chars",
			Help:      "Length of generated share URLs.",
			Buckets:   []float64{250, 500, 1000, 1500, 1800, 2500, 4000, 8000, 32000},
		}),
		giftsViewed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gifts_viewed_total",
			Help:      "Viewer pages rendered from a gift link.",
		}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gift_decode_failures_total",
			Help:      "Gift parameters that could not be decoded.",
		}),
		photosStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photos_stored_total",
			Help:      "Wizard photo uploads, by storage backend and result.",
		}, []string{"store", "result"}),
		qrDownloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_downloads_total",
			Help:      "QR image downloads proxied from the QR service.",
		}, []string{"result"}),
		accessAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_attempts_total",
			Help:      "Access code submissions.",
		}, []string{"result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveShare records a generated share link.
func (m *Metrics) ObserveShare(link gift.ShareLink) {
	outcome := "full"
	switch {
	case link.Degraded:
		outcome = "lite"
	case link.Oversize:
		outcome = "oversize"
	}
	m.giftsShared.WithLabelValues(outcome).Inc()
	m.shareURLLength.Observe(float64(link.Length))
}

func (m *Metrics) GiftViewed() { m.giftsViewed.Inc() }

func (m *Metrics) DecodeFailed() { m.decodeFailures.Inc() }

func (m *Metrics) PhotoStored(store string, err error) {
	m.photosStored.WithLabelValues(store, result(err)).Inc()
}

func (m *Metrics) QRDownloaded(err error) {
	m.qrDownloads.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) AccessAttempt(granted bool) {
	if granted {
		m.accessAttempts.WithLabelValues("granted").Inc()
		return
	}
	m.accessAttempts.WithLabelValues("denied").Inc()
}

// Middleware records request latency labelled with the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
