package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	CampaignID      uuid.UUID       `json:"campaignId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	SessionID       string          `json:"sessionId,omitempty"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Status          PaymentStatus   `json:"status"`
	RefundedAmount  decimal.Decimal `json:"refundedAmount"`
	RewardID        *uuid.UUID      `json:"rewardId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
