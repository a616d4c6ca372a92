package handler

import (
	"net/http"
	"time"

	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/pricing"
)

type quoteRequest struct {
	SlotType    domain.SlotType `json:"slotType"`
	Format      domain.AdFormat `json:"format"`
	Country     string          `json:"country"`
	StartAt     time.Time       `json:"startAt"`
	AIGenerated bool            `json:"aiGenerated"`
}

// CalculatePrice prices a single placement. A missing startAt means now.
func (h *Handler) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	var in pricing.Input
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.StartAt.IsZero() {
		in.StartAt = time.Now()
	}
	if in.Format == "" {
		in.Format = domain.FormatImage
	}
	b, err := pricing.Calculate(in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, b)
}

func (h *Handler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	var in quoteRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.StartAt.IsZero() {
		in.StartAt = time.Now()
	}
	if in.Format == "" {
		in.Format = domain.FormatImage
	}
	quotes, err := pricing.Quote(in.SlotType, in.Format, in.Country, in.StartAt, in.AIGenerated)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quotes)
}
