package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/middleware"
	"github.com/shopspring/decimal"
)

type checkoutRequest struct {
	CampaignID uuid.UUID `json:"campaignId"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.paymentService.List(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payments)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in checkoutRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.CampaignID == uuid.Nil {
		h.writeError(w, r, fmt.Errorf("%w: campaignId is required", domain.ErrInvalidInput))
		return
	}
	res, err := h.paymentService.CreateCheckout(r.Context(), middleware.GetUser(r.Context()), in.CampaignID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (h *Handler) VerifySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.writeError(w, r, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput))
		return
	}
	payment, err := h.paymentService.VerifySession(r.Context(), middleware.GetUser(r.Context()), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payment)
}

func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in refundRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	payment, err := h.paymentService.Refund(r.Context(), middleware.GetUser(r.Context()), id, in.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payment)
}

// StripeWebhook verifies and applies a Stripe event. Non-2xx responses make
// Stripe retry, so only signature problems are reported as client errors.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxWebhookBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, r, fmt.Errorf("%w: webhook payload too large", domain.ErrInvalidInput))
			return
		}
		h.writeError(w, r, fmt.Errorf("read webhook body: %w", err))
		return
	}

	if err := h.paymentService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			slog.Warn("rejected stripe webhook", "error", err)
		}
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"received": true})
}
