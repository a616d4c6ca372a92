package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SlotType is the pricing tier a placement belongs to.
type SlotType string

const (
	SlotTop    SlotType = "top"
	SlotMid    SlotType = "mid"
	SlotBottom SlotType = "bottom"
)

type CampaignStatus string

const (
	CampaignStatusDraft          CampaignStatus = "draft"
	CampaignStatusPendingPayment CampaignStatus = "pending_payment"
	CampaignStatusActive         CampaignStatus = "active"
	CampaignStatusCompleted      CampaignStatus = "completed"
	CampaignStatusCancelled      CampaignStatus = "cancelled"
)

type Campaign struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"ownerId"`
	AdID         uuid.UUID       `json:"adId"`
	Name         string          `json:"name"`
	SlotType     SlotType        `json:"slotType"`
	Country      string          `json:"country"`
	StartAt      time.Time       `json:"startAt"`
	DurationDays int             `json:"durationDays"`
	Format       AdFormat        `json:"format"`
	AIGenerated  bool            `json:"aiGenerated"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Status       CampaignStatus  `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Payable reports whether a checkout may be started for the campaign.
func (c *Campaign) Payable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusPendingPayment
}

// Editable reports whether pricing inputs may still change.
func (c *Campaign) Editable() bool {
	return c.Status == CampaignStatusDraft
}
