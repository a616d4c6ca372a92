package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal is a generated promotional offer for a slot.
type Deal struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	SlotType        SlotType        `json:"slotType"`
	Format          AdFormat        `json:"format"`
	DurationDays    int             `json:"durationDays"`
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	DealPrice       decimal.Decimal `json:"dealPrice"`
	DiscountPercent int             `json:"discountPercent"`
	ValidUntil      time.Time       `json:"validUntil"`
}

type Surprise struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	RewardHint string `json:"rewardHint"`
	ImageURL   string `json:"imageUrl"`
	Fallback   bool   `json:"fallback"`
}

type AdCopy struct {
	Headlines    []string `json:"headlines"`
	Body         string   `json:"body"`
	CallToAction string   `json:"callToAction"`
	Hashtags     []string `json:"hashtags"`
	Fallback     bool     `json:"fallback"`
}
