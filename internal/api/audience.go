package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-gigs/internal/auth"
	"ms-gigs/internal/models"
)

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	var body struct {
		SongID   int              `json:"songId"`
		Location *models.GeoPoint `json:"location"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "vote", err)
		return
	}
	ok, err := h.proximityOK(r.Context(), gigID, body.Location)
	if err != nil {
		h.fail(w, r, "vote", err)
		return
	}
	count, err := h.Gigs.Vote(r.Context(), gigID, auth.UserID(r.Context()), body.SongID, ok)
	if err != nil {
		h.fail(w, r, "vote", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("vote recorded", map[string]int{
		"songId": body.SongID,
		"votes":  count,
	}))
}

func (h *Handler) HasVoted(w http.ResponseWriter, r *http.Request) {
	songID, err := songIDParam(r)
	if err != nil {
		h.fail(w, r, "vote status", err)
		return
	}
	voted, err := h.Gigs.HasVoted(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()), songID)
	if err != nil {
		h.fail(w, r, "vote status", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("vote status", map[string]bool{"voted": voted}))
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	var body struct {
		Text     string           `json:"text"`
		UserName string           `json:"userName"`
		Location *models.GeoPoint `json:"location"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "comment", err)
		return
	}
	ok, err := h.proximityOK(r.Context(), gigID, body.Location)
	if err != nil {
		h.fail(w, r, "comment", err)
		return
	}
	author := models.Requester{ID: auth.UserID(r.Context()), Name: displayName(r, body.UserName)}
	c, err := h.Gigs.AddComment(r.Context(), gigID, author, body.Text, ok)
	if err != nil {
		h.fail(w, r, "comment", err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, SuccessResponse("comment added", c))
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	var body struct {
		SongID   int              `json:"songId"`
		UserName string           `json:"userName"`
		Message  string           `json:"message"`
		Location *models.GeoPoint `json:"location"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "submit request", err)
		return
	}
	ok, err := h.proximityOK(r.Context(), gigID, body.Location)
	if err != nil {
		h.fail(w, r, "submit request", err)
		return
	}
	requester := models.Requester{ID: auth.UserID(r.Context()), Name: displayName(r, body.UserName)}
	req, err := h.Requests.Submit(r.Context(), gigID, body.SongID, requester, body.Message, ok)
	if err != nil {
		h.fail(w, r, "submit request", err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, SuccessResponse("request submitted", req))
}

func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	g, err := h.Requests.Accept(r.Context(), chi.URLParam(r, "gigId"), chi.URLParam(r, "requestId"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "accept request", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("request accepted", h.view(g)))
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	g, err := h.Requests.Reject(r.Context(), chi.URLParam(r, "gigId"), chi.URLParam(r, "requestId"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "reject request", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("request rejected", h.view(g)))
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	at, err := h.Presence.Heartbeat(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "heartbeat", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("present", map[string]int{
		"totalJoins":      at.TotalJoins,
		"currentlyActive": at.CurrentlyActive,
	}))
}

// Leave never fails the client; departure is best effort.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.Presence.Leave(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context())); err != nil {
		h.Logger.Debug("PRESENCE", fmt.Sprintf("leave ignored: %v", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkInterested(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	if err := h.Gigs.MarkInterested(r.Context(), gigID, auth.UserID(r.Context())); err != nil {
		h.fail(w, r, "mark interest", err)
		return
	}
	h.sendInterest(w, r, gigID, "interest recorded")
}

func (h *Handler) UnmarkInterested(w http.ResponseWriter, r *http.Request) {
	gigID := chi.URLParam(r, "gigId")
	if err := h.Gigs.UnmarkInterested(r.Context(), gigID, auth.UserID(r.Context())); err != nil {
		h.fail(w, r, "unmark interest", err)
		return
	}
	h.sendInterest(w, r, gigID, "interest removed")
}

func (h *Handler) sendInterest(w http.ResponseWriter, r *http.Request, gigID, msg string) {
	n, err := h.Gigs.InterestedCount(r.Context(), gigID)
	if err != nil {
		h.fail(w, r, "interest count", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse(msg, map[string]int{"interested": n}))
}
