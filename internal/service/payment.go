package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/pricing"
	"github.com/set-night/adbazaar/internal/repository"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type PaymentService struct {
	store     repository.Store
	processor PaymentProcessor
	referrals *ReferralService
	notifier  Notifier
	cfg       *config.Config
	now       func() time.Time
}

func NewPaymentService(store repository.Store, processor PaymentProcessor, referrals *ReferralService, notifier Notifier, cfg *config.Config) *PaymentService {
	return &PaymentService{
		store:     store,
		processor: processor,
		referrals: referrals,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

type CheckoutResult struct {
	PaymentID uuid.UUID       `json:"paymentId"`
	SessionID string          `json:"sessionId,omitempty"`
	URL       string          `json:"url,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	ListPrice decimal.Decimal `json:"listPrice"`
	Discount  decimal.Decimal `json:"discount"`
	Currency  string          `json:"currency"`
	Free      bool            `json:"free"`
	RewardID  *uuid.UUID      `json:"rewardId,omitempty"`
	Payment   *domain.Payment `json:"payment,omitempty"`
}

// CreateCheckout prices the campaign, applies the best available reward and
// opens a hosted checkout session. A free slot reward (or a 100% discount)
// completes the payment immediately without the processor. A campaign that
// already has an open checkout gets that session back.
func (s *PaymentService) CreateCheckout(ctx context.Context, user *domain.User, campaignID uuid.UUID) (*CheckoutResult, error) {
	campaign, err := s.ownedCampaign(ctx, user, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == domain.CampaignStatusPendingPayment {
		resumed, err := s.resumePending(ctx, user, campaign)
		if err != nil || resumed != nil {
			return resumed, err
		}
		if campaign, err = s.ownedCampaign(ctx, user, campaignID); err != nil {
			return nil, err
		}
	}
	if !campaign.Payable() {
		return nil, domain.ErrCampaignNotPayable
	}

	quote, err := pricing.Calculate(campaignPricing(campaign))
	if err != nil {
		return nil, err
	}

	rewards, err := s.store.Referrals().ListRewards(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	pending, err := s.pendingPayments(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	reward := bestReward(withoutHeld(rewards, pending))

	amount := quote.Total
	if reward != nil {
		switch reward.Type {
		case domain.RewardFreeSlot:
			amount = decimal.Zero
		case domain.RewardDiscount:
			pct := decimal.Min(reward.Value, hundred)
			amount = amount.Sub(amount.Mul(pct).Div(hundred)).Round(2)
		}
	}

	currency := strings.ToLower(s.cfg.Currency)
	payment := &domain.Payment{
		ID:             uuid.New(),
		UserID:         user.ID,
		CampaignID:     campaign.ID,
		Amount:         amount,
		Currency:       strings.ToUpper(currency),
		Status:         domain.PaymentStatusPending,
		RefundedAmount: decimal.Zero,
	}
	if reward != nil {
		payment.RewardID = &reward.ID
	}

	result := &CheckoutResult{
		PaymentID: payment.ID,
		Amount:    amount,
		ListPrice: quote.Total,
		Discount:  quote.Total.Sub(amount),
		Currency:  payment.Currency,
		RewardID:  payment.RewardID,
	}

	if !amount.IsPositive() {
		payment.Amount = decimal.Zero
		if err := s.createPending(ctx, payment, campaign, quote.Total); err != nil {
			return nil, err
		}
		if _, err := s.complete(ctx, payment.ID, ""); err != nil {
			return nil, err
		}
		result.Free = true
		if result.Payment, err = s.store.Payments().Get(ctx, payment.ID); err != nil {
			return nil, fmt.Errorf("get payment: %w", err)
		}
		slog.Info("checkout completed with reward", "payment_id", payment.ID, "campaign_id", campaign.ID)
		return result, nil
	}

	if err := s.createPending(ctx, payment, campaign, quote.Total); err != nil {
		return nil, err
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, CheckoutRequest{
		PaymentID:     payment.ID.String(),
		CampaignID:    campaign.ID.String(),
		UserID:        user.ID.String(),
		CustomerEmail: user.Email,
		Name:          campaign.Name,
		Description:   fmt.Sprintf("%s slot, %d days, %s", campaign.SlotType, campaign.DurationDays, quote.Country),
		AmountCents:   toCents(amount),
		Currency:      currency,
		SuccessURL:    strings.TrimRight(s.cfg.PublicURL, "/") + "/payments/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     strings.TrimRight(s.cfg.PublicURL, "/") + "/campaigns/" + campaign.ID.String() + "?checkout=cancelled",
	})
	if err != nil {
		if ferr := s.fail(ctx, payment.ID, "checkout session not created"); ferr != nil {
			slog.Error("failed to mark payment failed", "error", ferr, "payment_id", payment.ID)
		}
		return nil, err
	}

	if err := s.attachSession(ctx, payment.ID, sess.ID); err != nil {
		return nil, err
	}

	result.SessionID = sess.ID
	result.URL = sess.URL
	slog.Info("checkout session created", "payment_id", payment.ID, "session_id", sess.ID,
		"amount", amount.String(), "campaign_id", campaign.ID)
	return result, nil
}

func (s *PaymentService) ownedCampaign(ctx context.Context, user *domain.User, campaignID uuid.UUID) (*domain.Campaign, error) {
	campaign, err := s.store.Campaigns().Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign.OwnerID != user.ID {
		return nil, domain.ErrCampaignNotFound
	}
	return campaign, nil
}

// createPending locks the draft campaign behind a new pending payment. Only
// one caller can move a campaign out of draft.
func (s *PaymentService) createPending(ctx context.Context, payment *domain.Payment, campaign *domain.Campaign, price decimal.Decimal) error {
	return s.store.WithTx(ctx, func(st repository.Store) error {
		moved, err := st.Campaigns().TransitionStatus(ctx, campaign.ID, domain.CampaignStatusDraft, domain.CampaignStatusPendingPayment)
		if err != nil {
			return fmt.Errorf("lock campaign: %w", err)
		}
		if !moved {
			return domain.ErrCampaignNotPayable
		}
		locked, err := st.Campaigns().Get(ctx, campaign.ID)
		if err != nil {
			return fmt.Errorf("get campaign: %w", err)
		}
		locked.Price = price
		if err := st.Campaigns().Update(ctx, locked); err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		if err := st.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		*campaign = *locked
		return nil
	})
}

// attachSession records the processor session on a payment that is still
// pending. A payment failed in the meantime keeps no session.
func (s *PaymentService) attachSession(ctx context.Context, paymentID uuid.UUID, sessionID string) error {
	return s.store.WithTx(ctx, func(st repository.Store) error {
		p, err := st.Payments().Get(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		if p.Status != domain.PaymentStatusPending {
			return domain.ErrCampaignNotPayable
		}
		p.SessionID = sessionID
		if err := st.Payments().Update(ctx, p); err != nil {
			return fmt.Errorf("save session id: %w", err)
		}
		return nil
	})
}

// resumePending settles the payment a pending_payment campaign is waiting on.
// An open session is handed back as is; a paid one completes the campaign.
// Otherwise the stale payment is failed, the campaign returns to draft and
// the caller may start over.
func (s *PaymentService) resumePending(ctx context.Context, user *domain.User, campaign *domain.Campaign) (*CheckoutResult, error) {
	pending, err := s.pendingPayments(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	var payment *domain.Payment
	for i := range pending {
		if pending[i].CampaignID == campaign.ID {
			payment = &pending[i]
			break
		}
	}
	if payment == nil {
		if _, err := s.store.Campaigns().TransitionStatus(ctx, campaign.ID, domain.CampaignStatusPendingPayment, domain.CampaignStatusDraft); err != nil {
			return nil, fmt.Errorf("release campaign: %w", err)
		}
		return nil, nil
	}

	if payment.SessionID != "" {
		sess, err := s.processor.GetCheckoutSession(ctx, payment.SessionID)
		if err != nil {
			return nil, err
		}
		switch {
		case sess.Paid():
			if _, err := s.complete(ctx, payment.ID, sess.PaymentIntentID); err != nil {
				return nil, err
			}
			return nil, domain.ErrCampaignNotPayable
		case sess.Open():
			slog.Info("reusing open checkout session", "payment_id", payment.ID, "session_id", sess.ID)
			return &CheckoutResult{
				PaymentID: payment.ID,
				SessionID: sess.ID,
				URL:       sess.URL,
				Amount:    payment.Amount,
				ListPrice: campaign.Price,
				Discount:  campaign.Price.Sub(payment.Amount),
				Currency:  payment.Currency,
				RewardID:  payment.RewardID,
			}, nil
		case !sess.Expired():
			return nil, domain.ErrCampaignNotPayable
		}
	}

	if err := s.fail(ctx, payment.ID, "checkout replaced"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *PaymentService) pendingPayments(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	payments, err := s.store.Payments().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	pending := payments[:0]
	for _, p := range payments {
		if p.Status == domain.PaymentStatusPending {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// withoutHeld drops rewards already attached to another pending payment.
func withoutHeld(rewards []domain.ReferralReward, pending []domain.Payment) []domain.ReferralReward {
	held := make(map[uuid.UUID]bool, len(pending))
	for _, p := range pending {
		if p.RewardID != nil {
			held[*p.RewardID] = true
		}
	}
	free := make([]domain.ReferralReward, 0, len(rewards))
	for _, r := range rewards {
		if !held[r.ID] {
			free = append(free, r)
		}
	}
	return free
}

// VerifySession reconciles a payment with the processor's view of its
// checkout session. Used by the success page when the webhook lags.
func (s *PaymentService) VerifySession(ctx context.Context, user *domain.User, sessionID string) (*domain.Payment, error) {
	payment, err := s.store.Payments().GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment.UserID != user.ID && !user.IsAdmin() {
		return nil, domain.ErrPaymentNotFound
	}
	if payment.Status != domain.PaymentStatusPending {
		return payment, nil
	}

	sess, err := s.processor.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case sess.Paid():
		if _, err := s.complete(ctx, payment.ID, sess.PaymentIntentID); err != nil {
			return nil, err
		}
	case sess.Expired():
		if err := s.fail(ctx, payment.ID, "session expired"); err != nil {
			return nil, err
		}
	default:
		return payment, nil
	}

	return s.store.Payments().Get(ctx, payment.ID)
}

// Refund returns money for a completed payment. amount nil refunds the rest.
func (s *PaymentService) Refund(ctx context.Context, user *domain.User, paymentID uuid.UUID, amount *decimal.Decimal) (*domain.Payment, error) {
	payment, err := s.store.Payments().Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment.UserID != user.ID && !user.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if payment.Status != domain.PaymentStatusCompleted || payment.PaymentIntentID == "" {
		return nil, domain.ErrPaymentNotRefundable
	}

	remaining := payment.Amount.Sub(payment.RefundedAmount)
	if !remaining.IsPositive() {
		return nil, domain.ErrPaymentNotRefundable
	}
	refundAmount := remaining
	if amount != nil {
		refundAmount = amount.Round(2)
		if !refundAmount.IsPositive() || refundAmount.GreaterThan(remaining) {
			return nil, fmt.Errorf("%w: refund amount must be between 0.01 and %s", domain.ErrInvalidInput, remaining.StringFixed(2))
		}
	}

	if err := s.processor.Refund(ctx, payment.PaymentIntentID, toCents(refundAmount)); err != nil {
		return nil, err
	}

	refunded := payment.RefundedAmount.Add(refundAmount)
	updated, err := s.applyRefund(ctx, payment.ID, refunded, refunded.GreaterThanOrEqual(payment.Amount))
	if err != nil {
		return nil, err
	}

	s.notifier.PaymentRefunded(updated, refundAmount)
	slog.Info("payment refunded", "payment_id", payment.ID, "amount", refundAmount.String(), "by", user.ID)
	return updated, nil
}

// applyRefund records the absolute refunded total so webhook replays of the
// same refund do not double count.
func (s *PaymentService) applyRefund(ctx context.Context, paymentID uuid.UUID, refunded decimal.Decimal, full bool) (*domain.Payment, error) {
	var out *domain.Payment
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		p, err := st.Payments().Get(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		if p.Status != domain.PaymentStatusCompleted && p.Status != domain.PaymentStatusRefunded {
			out = p
			return nil
		}
		if refunded.GreaterThan(p.RefundedAmount) {
			p.RefundedAmount = refunded
		}
		if full {
			p.Status = domain.PaymentStatusRefunded
			if err := st.Campaigns().SetStatus(ctx, p.CampaignID, domain.CampaignStatusCancelled); err != nil {
				return fmt.Errorf("cancel campaign: %w", err)
			}
		}
		if err := st.Payments().Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

// HandleWebhook verifies and applies a processor event. Unknown events and
// events for unknown payments are acknowledged without error.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	log := slog.With("event_id", event.ID, "event_type", event.Type)

	payment, err := s.findEventPayment(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			log.Warn("webhook for unknown payment")
			return nil
		}
		return err
	}

	switch event.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		if event.Session != nil && !event.Session.Paid() {
			log.Info("checkout completed, payment still processing", "payment_id", payment.ID)
			return nil
		}
		_, err = s.complete(ctx, payment.ID, event.PaymentIntentID)
	case EventPaymentIntentFailed:
		// The customer can retry on the same session until it expires.
		log.Info("payment attempt declined, checkout session stays open", "payment_id", payment.ID)
		return nil
	case EventCheckoutExpired, EventCheckoutAsyncFailed:
		err = s.fail(ctx, payment.ID, event.Type)
	case EventChargeRefunded:
		refunded := decimal.New(event.AmountRefunded, -2)
		var updated *domain.Payment
		updated, err = s.applyRefund(ctx, payment.ID, refunded, event.FullyRefunded)
		if err == nil && updated.RefundedAmount.GreaterThan(payment.RefundedAmount) {
			s.notifier.PaymentRefunded(updated, updated.RefundedAmount.Sub(payment.RefundedAmount))
		}
	default:
		log.Debug("ignoring webhook event")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("webhook processed", "payment_id", payment.ID)
	return nil
}

func (s *PaymentService) findEventPayment(ctx context.Context, event *ProcessorEvent) (*domain.Payment, error) {
	if raw := event.Metadata["payment_id"]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			p, err := s.store.Payments().Get(ctx, id)
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("get payment: %w", err)
			}
		}
	}

	lookups := []func() (*domain.Payment, error){}
	if event.Session != nil {
		lookups = append(lookups, func() (*domain.Payment, error) {
			return s.store.Payments().GetBySessionID(ctx, event.Session.ID)
		})
	}
	if event.PaymentIntentID != "" {
		lookups = append(lookups, func() (*domain.Payment, error) {
			return s.store.Payments().GetByPaymentIntentID(ctx, event.PaymentIntentID)
		})
	}
	for _, lookup := range lookups {
		p, err := lookup()
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get payment: %w", err)
		}
	}
	return nil, domain.ErrPaymentNotFound
}

// complete is the single path that confirms a payment: payment completed,
// campaign active, reward consumed, referral converted. Only the caller that
// moves the payment out of pending does the work; it reports whether it did.
func (s *PaymentService) complete(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (bool, error) {
	var (
		payment  *domain.Payment
		campaign *domain.Campaign
		referral *domain.Referral
		reward   *domain.ReferralReward
		done     bool
	)
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		moved, err := st.Payments().TransitionStatus(ctx, paymentID, domain.PaymentStatusPending, domain.PaymentStatusCompleted)
		if err != nil {
			return fmt.Errorf("transition payment: %w", err)
		}
		if !moved {
			return nil
		}

		payment, err = st.Payments().Get(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		if paymentIntentID != "" {
			payment.PaymentIntentID = paymentIntentID
			if err := st.Payments().Update(ctx, payment); err != nil {
				return fmt.Errorf("save payment intent: %w", err)
			}
		}

		if err := st.Campaigns().SetStatus(ctx, payment.CampaignID, domain.CampaignStatusActive); err != nil {
			return fmt.Errorf("activate campaign: %w", err)
		}
		campaign, err = st.Campaigns().Get(ctx, payment.CampaignID)
		if err != nil {
			return fmt.Errorf("get campaign: %w", err)
		}

		if payment.RewardID != nil {
			ok, err := st.Referrals().RedeemReward(ctx, *payment.RewardID, s.now())
			if err != nil {
				return fmt.Errorf("redeem reward: %w", err)
			}
			if !ok {
				slog.Warn("checkout reward was already redeemed", "payment_id", payment.ID, "reward_id", *payment.RewardID)
			}
		}

		referral, reward, err = s.referrals.processReward(ctx, st, payment.UserID)
		if err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}

	slog.Info("payment completed", "payment_id", payment.ID, "campaign_id", payment.CampaignID, "amount", payment.Amount.String())
	s.notifier.PaymentCompleted(payment, campaign)
	if reward != nil {
		s.notifier.ReferralConverted(referral, reward)
	}
	return true, nil
}

// fail moves a pending payment to failed and hands its campaign back to
// draft so the owner can edit, delete or pay for it again.
func (s *PaymentService) fail(ctx context.Context, paymentID uuid.UUID, reason string) error {
	var campaignID uuid.UUID
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		moved, err := st.Payments().TransitionStatus(ctx, paymentID, domain.PaymentStatusPending, domain.PaymentStatusFailed)
		if err != nil {
			return fmt.Errorf("transition payment: %w", err)
		}
		if !moved {
			return nil
		}
		p, err := st.Payments().Get(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		campaignID = p.CampaignID
		_, err = st.Campaigns().TransitionStatus(ctx, p.CampaignID, domain.CampaignStatusPendingPayment, domain.CampaignStatusDraft)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("release campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if campaignID != uuid.Nil {
		slog.Info("payment failed", "payment_id", paymentID, "campaign_id", campaignID, "reason", reason)
	}
	return nil
}

func (s *PaymentService) List(ctx context.Context, user *domain.User) ([]domain.Payment, error) {
	payments, err := s.store.Payments().ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
