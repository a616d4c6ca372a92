package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/middleware"
	"github.com/set-night/adbazaar/internal/service"
	"github.com/shopspring/decimal"
)

type referralCodeResponse struct {
	Code        string            `json:"code"`
	ShareURL    string            `json:"shareUrl"`
	RewardType  domain.RewardType `json:"rewardType"`
	RewardValue decimal.Decimal   `json:"rewardValue"`
	Uses        int               `json:"uses"`
	MaxUses     int               `json:"maxUses"`
}

type applyReferralRequest struct {
	Code string `json:"code"`
}

func (h *Handler) shareURL(code string) string {
	return strings.TrimRight(h.cfg.PublicURL, "/") + "/register?ref=" + url.QueryEscape(code)
}

func (h *Handler) codeResponse(c *domain.ReferralCode) referralCodeResponse {
	return referralCodeResponse{
		Code:        c.Code,
		ShareURL:    h.shareURL(c.Code),
		RewardType:  c.RewardType,
		RewardValue: c.RewardValue,
		Uses:        c.Uses,
		MaxUses:     c.MaxUses,
	}
}

func (h *Handler) MyReferralCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.referralService.DefaultCode(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.codeResponse(code))
}

func (h *Handler) ListReferralCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.referralService.ListCodes(r.Context(), middleware.GetUser(r.Context()).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]referralCodeResponse, 0, len(codes))
	for i := range codes {
		out = append(out, h.codeResponse(&codes[i]))
	}
	writeData(w, http.StatusOK, out)
}

func (h *Handler) CreateReferralCode(w http.ResponseWriter, r *http.Request) {
	var in service.CodeInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	code, err := h.referralService.GenerateCode(r.Context(), middleware.GetUser(r.Context()).ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, h.codeResponse(code))
}

func (h *Handler) ValidateReferralCode(w http.ResponseWriter, r *http.Request) {
	info, err := h.referralService.ValidateCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, info)
}

func (h *Handler) ApplyReferralCode(w http.ResponseWriter, r *http.Request) {
	var in applyReferralRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	referral, err := h.referralService.ApplyCode(r.Context(), middleware.GetUser(r.Context()).ID, in.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, referral)
}

func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.referralService.ListRewards(r.Context(), middleware.GetUser(r.Context()).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rewards)
}

func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reward, err := h.referralService.RedeemReward(r.Context(), middleware.GetUser(r.Context()).ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reward)
}

func (h *Handler) ReferralStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.referralService.Stats(r.Context(), middleware.GetUser(r.Context()).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
