package handler

import (
	"net/http"

	"github.com/set-night/adbazaar/internal/service"
)

func (h *Handler) GenerateAdCopy(w http.ResponseWriter, r *http.Request) {
	var in service.AdCopyInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.adCopyService.Generate(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (h *Handler) GenerateDeals(w http.ResponseWriter, r *http.Request) {
	var in service.DealsInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.dealService.Generate(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (h *Handler) GenerateSurprise(w http.ResponseWriter, r *http.Request) {
	var in service.SurpriseInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.surpriseService.Generate(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}
