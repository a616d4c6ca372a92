// Package telegram posts marketplace events to an ops chat, one forum topic
// per event kind.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
)

const sendTimeout = 10 * time.Second

type EventType string

const (
	EventError    EventType = "error"
	EventSignup   EventType = "signup"
	EventPayment  EventType = "payment"
	EventReferral EventType = "referral"
)

type Notifier struct {
	sender   messageSender
	cfg      *config.Config
	dispatch func(func())
}

// New returns a Notifier backed by a Telegram bot. The bot skips the getMe
// handshake so startup does not depend on Telegram being reachable.
func New(cfg *config.Config) (*Notifier, error) {
	b, err := bot.New(cfg.TelegramBotToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newNotifier(b, cfg), nil
}

func newNotifier(sender messageSender, cfg *config.Config) *Notifier {
	return &Notifier{
		sender:   sender,
		cfg:      cfg,
		dispatch: func(f func()) { go f() },
	}
}

func (n *Notifier) Log(event EventType, message string) {
	if n.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := n.topicID(event)
	if topicID == 0 {
		return
	}

	n.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := sendMarkdown(ctx, n.sender, n.cfg.LogTelegramChatID, topicID, message); err != nil {
			slog.Error("failed to send telegram log", "type", event, "error", err)
		}
	})
}

func (n *Notifier) Error(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		escape(context), strings.ReplaceAll(err.Error(), "`", "'"), time.Now().Format("2006-01-02 15:04:05"))
	n.Log(EventError, msg)
}

func (n *Notifier) Signup(user *domain.User, referralCode string) {
	msg := fmt.Sprintf("👤 *New Signup*\n\n*ID:* `%s`\n*Name:* %s\n*Email:* %s",
		user.ID, escape(user.Name), escape(user.Email))
	if referralCode != "" {
		msg += fmt.Sprintf("\n*Referral code:* `%s`", referralCode)
	}
	n.Log(EventSignup, msg)
}

func (n *Notifier) PaymentCompleted(p *domain.Payment, c *domain.Campaign) {
	msg := fmt.Sprintf("💰 *Payment Completed*\n\n*User:* `%s`\n*Amount:* %s %s\n*Campaign:* %s\n*Slot:* %s, %d days, %s",
		p.UserID, p.Amount.StringFixed(2), p.Currency, escape(c.Name), c.SlotType, c.DurationDays, c.Country)
	if p.RewardID != nil {
		msg += "\n*Reward applied:* yes"
	}
	n.Log(EventPayment, msg)
}

func (n *Notifier) PaymentRefunded(p *domain.Payment, amount decimal.Decimal) {
	msg := fmt.Sprintf("↩️ *Refund*\n\n*Payment:* `%s`\n*User:* `%s`\n*Amount:* %s %s\n*Status:* %s",
		p.ID, p.UserID, amount.StringFixed(2), p.Currency, p.Status)
	n.Log(EventPayment, msg)
}

func (n *Notifier) ReferralConverted(referral *domain.Referral, reward *domain.ReferralReward) {
	msg := fmt.Sprintf("🤝 *Referral Converted*\n\n*Referrer:* `%s`\n*Referred:* `%s`\n*Code:* `%s`\n*Reward:* %s %s",
		referral.ReferrerID, referral.ReferredID, referral.Code, reward.Type, reward.Value.String())
	n.Log(EventReferral, msg)
}

func (n *Notifier) topicID(event EventType) int {
	switch event {
	case EventError:
		return n.cfg.LogTopicError
	case EventSignup:
		return n.cfg.LogTopicSignup
	case EventPayment:
		return n.cfg.LogTopicPayment
	case EventReferral:
		return n.cfg.LogTopicReferral
	default:
		return 0
	}
}
