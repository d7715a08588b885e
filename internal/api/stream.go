package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-gigs/internal/sse"
)

const streamPingInterval = 15 * time.Second

// Stream pushes fresh gig views and notices to one client as Server-Sent Events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	v, err := h.Gigs.View(r.Context(), gigID)
	if err != nil {
		h.fail(w, r, "stream", err)
		return
	}

	ctx := r.Context()
	updates := h.Emitter.Subscribe(ctx, gigID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "view", v); err != nil {
		return
	}
	flusher.Flush()
	h.Logger.Info("HTTP", fmt.Sprintf("stream opened for gig %s (%d clients)", gigID, h.Emitter.ClientCount(gigID)))

	ping := h.Clock.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeUpdate(w, u); err != nil {
				h.Logger.Debug("HTTP", fmt.Sprintf("stream for gig %s closed: %v", gigID, err))
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("HTTP", fmt.Sprintf("stream client left gig %s", gigID))
			return
		}
	}
}

func writeUpdate(w http.ResponseWriter, u sse.Update) error {
	if u.View != nil {
		if err := writeEvent(w, "view", u.View); err != nil {
			return err
		}
	}
	if u.Notice != nil {
		return writeEvent(w, "notice", u.Notice)
	}
	return nil
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
