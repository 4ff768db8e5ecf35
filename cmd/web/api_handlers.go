package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	"github.com/Patrickog1992/CODELOVE1/internal/httpx"
	mw "github.com/Patrickog1992/CODELOVE1/internal/middleware"
	"github.com/Patrickog1992/CODELOVE1/internal/requestctx"
)

type elapsedResponse struct {
	gift.Span
	Valid bool `json:"valid"`
}

// apiCreateGift builds the share link for a record posted as JSON.
func (a *app) apiCreateGift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var rec gift.Record
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Write(ctx, w, httpx.NewError(http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large"))
			return
		}
		if errors.Is(err, io.EOF) {
			httpx.Write(ctx, w, httpx.NewError(http.StatusBadRequest, "invalid_body", "request body is empty"))
			return
		}
		httpx.Write(ctx, w, httpx.NewError(http.StatusBadRequest, "invalid_body", "%v", err))
		return
	}
	rec = rec.Normalize()
	if rec.Date != "" {
		if _, ok := gift.ParseDate(rec.Date, a.cfg.Location()); !ok {
			httpx.Write(ctx, w, httpx.NewError(http.StatusUnprocessableEntity, "invalid_date", "date must be YYYY-MM-DD").OnField("date"))
			return
		}
	}

	link, err := a.sharer.Share(a.baseURL(r), rec)
	if err != nil {
		requestctx.Logger(ctx).Error("share link failed", zap.Error(err))
		httpx.Write(ctx, w, httpx.NewError(http.StatusInternalServerError, "share_failed", "could not build share link"))
		return
	}
	a.metrics.ObserveShare(link)
	if link.Oversize {
		link.Warning = a.bundle.T(mw.Lang(r), "result.oversize_warning")
	}
	httpx.WriteJSON(w, http.StatusCreated, link)
}

// apiGetGift decodes a payload the same way the viewer does.
func (a *app) apiGetGift(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.codec.DecodeQuery(r.URL.Query())
	if !ok {
		if r.URL.Query().Get(gift.QueryParam) != "" {
			a.metrics.DecodeFailed()
		}
		httpx.Write(r.Context(), w, httpx.NewError(http.StatusNotFound, "gift_not_found", "gift payload is missing or invalid"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (a *app) apiElapsed(w http.ResponseWriter, r *http.Request) {
	span, ok := gift.Elapsed(r.URL.Query().Get("date"), a.codec.Now())
	httpx.WriteJSON(w, http.StatusOK, elapsedResponse{Span: span, Valid: ok})
}
