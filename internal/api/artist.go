package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-gigs/internal/auth"
	"ms-gigs/internal/models"
)

func (h *Handler) ActiveLiveGig(w http.ResponseWriter, r *http.Request) {
	g, err := h.Gigs.ActiveLiveGigForArtist(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "active live gig", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("live gig", h.view(g)))
}

func (h *Handler) MyGigs(w http.ResponseWriter, r *http.Request) {
	views, err := h.Gigs.ListByArtist(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "list gigs", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("gigs", views))
}

func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := h.Library.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "get library", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("library", lib))
}

func (h *Handler) SaveLibrary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MasterSongs []models.Song `json:"masterSongs"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, "save library", err)
		return
	}
	lib, err := h.Library.SaveMasterSongs(r.Context(), auth.UserID(r.Context()), body.MasterSongs)
	if err != nil {
		h.fail(w, r, "save library", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("library saved", lib))
}

// ImportLibrary merges a library held on the client into the stored one.
func (h *Handler) ImportLibrary(w http.ResponseWriter, r *http.Request) {
	var local models.ArtistLibrary
	if err := decodeBody(r, &local); err != nil {
		h.fail(w, r, "import library", err)
		return
	}
	lib, err := h.Library.Import(r.Context(), auth.UserID(r.Context()), local)
	if err != nil {
		h.fail(w, r, "import library", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("library imported", lib))
}

func (h *Handler) SaveSetlist(w http.ResponseWriter, r *http.Request) {
	var setlist models.Setlist
	if err := decodeBody(r, &setlist); err != nil {
		h.fail(w, r, "save setlist", err)
		return
	}
	lib, err := h.Library.SaveSetlist(r.Context(), auth.UserID(r.Context()), setlist)
	if err != nil {
		h.fail(w, r, "save setlist", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("setlist saved", lib))
}

func (h *Handler) DeleteSetlist(w http.ResponseWriter, r *http.Request) {
	lib, err := h.Library.DeleteSetlist(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "setlistId"))
	if err != nil {
		h.fail(w, r, "delete setlist", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("setlist deleted", lib))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		sendJSONResponse(w, http.StatusOK, SuccessResponse("history", []models.GigArchive{}))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.Archive.ListByArtist(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("history", list))
}

func (h *Handler) ArchivedGig(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		h.fail(w, r, "archived gig", models.ErrGigNotFound)
		return
	}
	a, err := h.Archive.Get(r.Context(), chi.URLParam(r, "gigId"))
	if err != nil {
		h.fail(w, r, "archived gig", err)
		return
	}
	if a.ArtistID != auth.UserID(r.Context()) {
		h.fail(w, r, "archived gig", models.ErrNotGigOwner)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse("archived gig", a))
}
