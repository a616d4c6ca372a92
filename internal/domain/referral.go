package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RewardType string

const (
	RewardCredit   RewardType = "credit"
	RewardDiscount RewardType = "discount"
	RewardFreeSlot RewardType = "free_slot"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardCredit, RewardDiscount, RewardFreeSlot:
		return true
	}
	return false
}

type ReferralCode struct {
	Code        string          `json:"code"`
	OwnerID     uuid.UUID       `json:"ownerId"`
	RewardType  RewardType      `json:"rewardType"`
	RewardValue decimal.Decimal `json:"rewardValue"`
	MaxUses     int             `json:"maxUses"`
	Uses        int             `json:"uses"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Usable reports whether the code can still be applied at now.
func (c *ReferralCode) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return c.MaxUses == 0 || c.Uses < c.MaxUses
}

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralConverted ReferralStatus = "converted"
)

type Referral struct {
	ID          uuid.UUID      `json:"id"`
	Code        string         `json:"code"`
	ReferrerID  uuid.UUID      `json:"referrerId"`
	ReferredID  uuid.UUID      `json:"referredId"`
	Status      ReferralStatus `json:"status"`
	ConvertedAt *time.Time     `json:"convertedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type RewardStatus string

const (
	RewardAvailable RewardStatus = "available"
	RewardRedeemed  RewardStatus = "redeemed"
)

type ReferralReward struct {
	ID         uuid.UUID       `json:"id"`
	ReferralID uuid.UUID       `json:"referralId"`
	UserID     uuid.UUID       `json:"userId"`
	Type       RewardType      `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Status     RewardStatus    `json:"status"`
	RedeemedAt *time.Time      `json:"redeemedAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type ReferralStats struct {
	Invited       int             `json:"invited"`
	Converted     int             `json:"converted"`
	CreditsEarned decimal.Decimal `json:"creditsEarned"`
	Available     int             `json:"availableRewards"`
}
