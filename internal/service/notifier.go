package service

import (
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
)

// Notifier receives business events for the ops channel. Implementations
// must not block the caller for long.
type Notifier interface {
	Signup(user *domain.User, referralCode string)
	PaymentCompleted(p *domain.Payment, c *domain.Campaign)
	PaymentRefunded(p *domain.Payment, amount decimal.Decimal)
	ReferralConverted(referral *domain.Referral, reward *domain.ReferralReward)
	Error(err error, context string)
}

type NopNotifier struct{}

func (NopNotifier) Signup(*domain.User, string)                                 {}
func (NopNotifier) PaymentCompleted(*domain.Payment, *domain.Campaign)          {}
func (NopNotifier) PaymentRefunded(*domain.Payment, decimal.Decimal)            {}
func (NopNotifier) ReferralConverted(*domain.Referral, *domain.ReferralReward) {}
func (NopNotifier) Error(error, string)                                         {}
