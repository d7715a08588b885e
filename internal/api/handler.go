// Package api exposes the gig services over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-gigs/internal/auth"
	"ms-gigs/internal/clock"
	"ms-gigs/internal/geo"
	"ms-gigs/internal/gigs"
	"ms-gigs/internal/library"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/presence"
	"ms-gigs/internal/qr"
	"ms-gigs/internal/requests"
	"ms-gigs/internal/sse"
)

// ArchiveReader serves the post-gig history. It is optional.
type ArchiveReader interface {
	Get(ctx context.Context, gigID string) (*models.GigArchive, error)
	ListByArtist(ctx context.Context, artistID string, limit int) ([]models.GigArchive, error)
}

// Pinger checks the document store backend. It is optional.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Gigs      *gigs.Service
	Requests  *requests.Service
	Presence  *presence.Tracker
	Library   *library.Service
	Archive   ArchiveReader
	Backend   Pinger
	Emitter   *sse.GigEmitter
	QR        *qr.Generator
	Proximity geo.Checker
	Clock     clock.Clock
	Logger    *logger.Logger
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %s failed: %v", r.Method, r.URL.Path, op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s %s: %s rejected: %v", r.Method, r.URL.Path, op, err))
	}
	sendJSONResponse(w, status, ErrorResponse(op+" failed", err))
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return models.NewValidationError("body", err.Error())
	}
	return nil
}

func songIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "songId"))
	if err != nil {
		return 0, models.NewValidationError("songId", "must be an integer")
	}
	return id, nil
}

// proximityOK loads the gig's venue and checks the caller's reported position.
func (h *Handler) proximityOK(ctx context.Context, gigID string, loc *models.GeoPoint) (bool, error) {
	g, err := h.Gigs.Get(ctx, gigID)
	if err != nil {
		return false, err
	}
	return h.Proximity.Allowed(loc, g.VenueLocation), nil
}

func (h *Handler) view(g *models.Gig) *models.GigView {
	return gigs.ViewOf(g, h.Clock.Now(), h.Gigs.Location())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Backend != nil {
		if err := h.Backend.Ping(r.Context()); err != nil {
			h.fail(w, r, "health check", fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
			return
		}
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("ok", nil))
}

func (h *Handler) CreateGig(w http.ResponseWriter, r *http.Request) {
	var in models.CreateGigInput
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, "create gig", err)
		return
	}
	in.ArtistID = auth.UserID(r.Context())
	g, err := h.Gigs.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create gig", err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, SuccessResponse("gig created", h.view(g)))
}

func (h *Handler) GetGig(w http.ResponseWriter, r *http.Request) {
	v, err := h.Gigs.View(r.Context(), chi.URLParam(r, "gigId"))
	if err != nil {
		h.fail(w, r, "get gig", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("gig", v))
}

func (h *Handler) DeleteGig(w http.ResponseWriter, r *http.Request) {
	if err := h.Gigs.Delete(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context())); err != nil {
		h.fail(w, r, "delete gig", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		h.fail(w, r, "nearby gigs", models.NewValidationError("lat/lng", "numeric lat and lng are required"))
		return
	}
	radius := 50_000.0
	if v := q.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			h.fail(w, r, "nearby gigs", models.NewValidationError("radius", "must be a positive number of meters"))
			return
		}
		radius = parsed
	}
	found, err := h.Gigs.Nearby(r.Context(), models.GeoPoint{Lat: lat, Lng: lng}, radius)
	if err != nil {
		h.fail(w, r, "nearby gigs", err)
		return
	}
	if found == nil {
		found = []models.NearbyGig{}
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse(fmt.Sprintf("%d gigs", len(found)), found))
}

func (h *Handler) GoLive(w http.ResponseWriter, r *http.Request) {
	g, err := h.Gigs.GoLive(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "go live", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("gig is live", h.view(g)))
}

func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Minutes int `json:"minutes"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "extend gig", err)
		return
	}
	g, err := h.Gigs.Extend(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()), body.Minutes)
	if err != nil {
		h.fail(w, r, "extend gig", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("gig extended", h.view(g)))
}

func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "end gig", err)
		return
	}
	g, err := h.Gigs.End(r.Context(), chi.URLParam(r, "gigId"), gigs.EndOptions{
		ArtistID: auth.UserID(r.Context()),
		Reason:   body.Reason,
	})
	if err != nil {
		h.fail(w, r, "end gig", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("gig ended", h.view(g)))
}

func (h *Handler) MarkPlayed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SongID int `json:"songId"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "mark played", err)
		return
	}
	g, err := h.Gigs.MarkPlayed(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()), body.SongID)
	if err != nil {
		h.fail(w, r, "mark played", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("song played", h.view(g)))
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestsEnabled *bool `json:"requestsEnabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "update settings", err)
		return
	}
	if body.RequestsEnabled == nil {
		h.fail(w, r, "update settings", models.NewValidationError("requestsEnabled", "is required"))
		return
	}
	g, err := h.Gigs.SetRequestsEnabled(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()), *body.RequestsEnabled)
	if err != nil {
		h.fail(w, r, "update settings", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("settings updated", h.view(g)))
}

func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	if _, err := h.Gigs.Get(r.Context(), gigID); err != nil {
		h.fail(w, r, "qr code", err)
		return
	}
	png, err := h.QR.PNG(gigID)
	if err != nil {
		h.fail(w, r, "qr code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (h *Handler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.Gigs.AutoCleanupExpired(r.Context())
	if err != nil {
		h.fail(w, r, "cleanup", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse(
		fmt.Sprintf("cancelled %d gigs", report.CancelledCount), report))
}

func displayName(r *http.Request, fromBody string) string {
	if name := strings.TrimSpace(fromBody); name != "" {
		return name
	}
	if name := auth.UserName(r.Context()); name != "" {
		return name
	}
	return "Anonymous"
}
