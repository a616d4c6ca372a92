package handler

import (
	"net/http"

	"github.com/set-night/adbazaar/internal/middleware"
	"github.com/set-night/adbazaar/internal/service"
)

func (h *Handler) ListAds(w http.ResponseWriter, r *http.Request) {
	ads, err := h.adService.List(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ads)
}

func (h *Handler) CreateAd(w http.ResponseWriter, r *http.Request) {
	var in service.AdInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.adService.Create(r.Context(), middleware.GetUser(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, ad)
}

func (h *Handler) GetAd(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.adService.Get(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ad)
}

func (h *Handler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in service.AdInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.adService.Update(r.Context(), middleware.GetUser(r.Context()), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ad)
}

func (h *Handler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.adService.Delete(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id.String()})
}
