package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/storage"
)

// UploadPhoto stores the raw request body as the caller's photo in {slot}.
// The returned URL goes into photo_urls of the next profile submission.
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.appCtx.Photos == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "photo storage is not configured"})
		return
	}

	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		h.writeError(w, r, svcErr.Validation("slot", "Photo slot must be 0 or 1"))
		return
	}

	body := http.MaxBytesReader(w, r.Body, storage.MaxPhotoBytes)
	photo, err := h.appCtx.Photos.PutPhoto(r.Context(), caller.UserID, slot, r.Header.Get("Content-Type"), body, r.ContentLength)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.appCtx.Logger.Info("photo uploaded", "user", caller.UserID, "key", photo.Key)
	writeJSON(w, http.StatusCreated, photo)
}
