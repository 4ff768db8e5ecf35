package main

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	"github.com/Patrickog1992/CODELOVE1/internal/qrcode"
	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
)

// qrDownloadHandler proxies the QR image for a gift so the browser can save it as
// a file. Only payloads that decode are forwarded upstream.
func (a *app) qrDownloadHandler(w http.ResponseWriter, r *http.Request) {
	payload := r.URL.Query().Get(gift.QueryParam)
	if _, err := a.codec.Decode(payload); err != nil {
		http.NotFound(w, r)
		return
	}
	target := gift.BuildURL(a.baseURL(r), payload)
	img, err := a.qr.Fetch(r.Context(), target)
	a.metrics.QRDownloaded(err)
	if err != nil {
		requestctx.Logger(r.Context()).Warn("qr download failed", zap.Error(err), zap.Int("target_length", len(target)))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+qrcode.DownloadFilename+`"`)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
