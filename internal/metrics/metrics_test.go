package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Patrickog1992/CODELOVE1/internal/gift"
)

func TestObserveShare(t *testing.T) {
	m := New()
	m.ObserveShare(gift.ShareLink{Length: 300})
	m.ObserveShare(gift.ShareLink{Length: 2400, Oversize: true, Degraded: true})
	m.ObserveShare(gift.ShareLink{Length: 2400, Oversize: true})

	require.Equal(t, 1.0, testutil.ToFloat64(m.giftsShared.WithLabelValues("full")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.giftsShared.WithLabelValues("lite")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.giftsShared.WithLabelValues("oversize")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.GiftViewed()
	m.DecodeFailed()
	m.DecodeFailed()
	m.AccessAttempt(false)
	m.QRDownloaded(nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.giftsViewed))
	require.Equal(t, 2.0, testutil.ToFloat64(m.decodeFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.accessAttempts.WithLabelValues("denied")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.qrDownloads.WithLabelValues("ok")))
}

func TestHandlerExposesRouteLatency(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/criar", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/criar", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `codelove_http_request_duration_seconds_count{method="GET",route="/criar",status="202"} 1`), body)
}
