package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the per-entity stores. WithTx runs fn against a store whose
// writes commit or roll back together.
type Store interface {
	Users() UserStore
	Ads() AdStore
	Campaigns() CampaignStore
	Payments() PaymentStore
	Referrals() ReferralStore
	WithTx(ctx context.Context, fn func(Store) error) error
}

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
	SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) error
	// AddCredit adjusts the credit balance by delta and returns the new balance.
	AddCredit(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type AdStore interface {
	Create(ctx context.Context, ad *domain.Ad) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ad, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Ad, error)
	Update(ctx context.Context, ad *domain.Ad) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CampaignStore interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Campaign, error)
	Update(ctx context.Context, c *domain.Campaign) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	// TransitionStatus changes the status only if it is currently from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
	// TransitionStatus moves a payment from one status to another and reports
	// whether the row was in the expected status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus) (bool, error)
}

type ReferralStore interface {
	CreateCode(ctx context.Context, c *domain.ReferralCode) error
	GetCode(ctx context.Context, code string) (*domain.ReferralCode, error)
	ListCodesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ReferralCode, error)
	// ClaimCodeUse counts one use of the code if it is still usable at at.
	ClaimCodeUse(ctx context.Context, code string, at time.Time) (bool, error)

	CreateReferral(ctx context.Context, r *domain.Referral) error
	GetReferralByReferred(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error)
	ListReferralsByReferrer(ctx context.Context, referrerID uuid.UUID) ([]domain.Referral, error)
	ConvertReferral(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	CreateReward(ctx context.Context, r *domain.ReferralReward) error
	GetReward(ctx context.Context, id uuid.UUID) (*domain.ReferralReward, error)
	ListRewards(ctx context.Context, userID uuid.UUID) ([]domain.ReferralReward, error)
	RedeemReward(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
