package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-gigs/internal/auth"
	"ms-gigs/internal/logger"
)

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

// NewRouter mounts the public and authenticated gig routes.
func NewRouter(h *Handler, v auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Logger))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Optional(v))
			r.Get("/gigs/nearby", h.Nearby)
			r.Get("/gigs/{gigId}", h.GetGig)
			r.Get("/gigs/{gigId}/stream", h.Stream)
			r.Get("/gigs/{gigId}/qr", h.QRCode)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(v, h.Logger))

			r.Post("/gigs", h.CreateGig)
			r.Delete("/gigs/{gigId}", h.DeleteGig)
			r.Post("/gigs/{gigId}/live", h.GoLive)
			r.Post("/gigs/{gigId}/extend", h.Extend)
			r.Post("/gigs/{gigId}/end", h.End)
			r.Post("/gigs/{gigId}/played", h.MarkPlayed)
			r.Put("/gigs/{gigId}/settings", h.UpdateSettings)

			r.Post("/gigs/{gigId}/votes", h.Vote)
			r.Get("/gigs/{gigId}/votes/{songId}", h.HasVoted)
			r.Post("/gigs/{gigId}/comments", h.AddComment)
			r.Post("/gigs/{gigId}/requests", h.SubmitRequest)
			r.Post("/gigs/{gigId}/requests/{requestId}/accept", h.AcceptRequest)
			r.Post("/gigs/{gigId}/requests/{requestId}/reject", h.RejectRequest)
			r.Post("/gigs/{gigId}/presence", h.Heartbeat)
			r.Delete("/gigs/{gigId}/presence", h.Leave)
			r.Post("/gigs/{gigId}/interest", h.MarkInterested)
			r.Delete("/gigs/{gigId}/interest", h.UnmarkInterested)

			r.Route("/artists/me", func(r chi.Router) {
				r.Get("/live", h.ActiveLiveGig)
				r.Get("/gigs", h.MyGigs)
				r.Get("/library", h.GetLibrary)
				r.Put("/library", h.SaveLibrary)
				r.Post("/library/import", h.ImportLibrary)
				r.Put("/setlists", h.SaveSetlist)
				r.Delete("/setlists/{setlistId}", h.DeleteSetlist)
				r.Get("/history", h.History)
				r.Get("/history/{gigId}", h.ArchivedGig)
			})

			r.Post("/admin/cleanup", h.RunCleanup)
		})
	})

	return r
}
