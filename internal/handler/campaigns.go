package handler

import (
	"net/http"

	"github.com/set-night/adbazaar/internal/middleware"
	"github.com/set-night/adbazaar/internal/service"
)

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaignService.List(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, campaigns)
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in service.CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	campaign, err := h.campaignService.Create(r.Context(), middleware.GetUser(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, campaign)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	campaign, err := h.campaignService.Get(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, campaign)
}

func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in service.CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	campaign, err := h.campaignService.Update(r.Context(), middleware.GetUser(r.Context()), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, campaign)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.campaignService.Delete(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id.String()})
}
