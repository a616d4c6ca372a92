package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/set-night/adbazaar/internal/domain"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"
)

// PaymentProcessor is the hosted checkout provider used by PaymentService.
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*ProcessorSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*ProcessorSession, error)
	Refund(ctx context.Context, paymentIntentID string, amountCents int64) error
	ParseWebhook(payload []byte, signature string) (*ProcessorEvent, error)
}

type CheckoutRequest struct {
	PaymentID     string
	CampaignID    string
	UserID        string
	CustomerEmail string
	Name          string
	Description   string
	AmountCents   int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type ProcessorSession struct {
	ID              string
	URL             string
	Status          string // open, complete, expired
	PaymentStatus   string // paid, unpaid, no_payment_required
	PaymentIntentID string
	Metadata        map[string]string
}

func (s *ProcessorSession) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
}

func (s *ProcessorSession) Open() bool {
	return s.Status == string(stripe.CheckoutSessionStatusOpen)
}

func (s *ProcessorSession) Expired() bool {
	return s.Status == string(stripe.CheckoutSessionStatusExpired)
}

// ProcessorEvent is the subset of a webhook event PaymentService acts on.
type ProcessorEvent struct {
	ID              string
	Type            string
	Session         *ProcessorSession
	PaymentIntentID string
	Metadata        map[string]string
	AmountRefunded  int64
	FullyRefunded   bool
}

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded         = "charge.refunded"
)

type StripeProcessor struct {
	webhookSecret string
}

func NewStripeProcessor(secretKey, webhookSecret string) *StripeProcessor {
	stripe.Key = secretKey
	return &StripeProcessor{webhookSecret: webhookSecret}
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*ProcessorSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.PaymentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Name),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"payment_id":  req.PaymentID,
				"campaign_id": req.CampaignID,
				"user_id":     req.UserID,
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("payment_id", req.PaymentID)
	params.AddMetadata("campaign_id", req.CampaignID)
	params.AddMetadata("user_id", req.UserID)
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return toProcessorSession(s), nil
}

func (p *StripeProcessor) GetCheckoutSession(ctx context.Context, sessionID string) (*ProcessorSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return toProcessorSession(s), nil
}

func (p *StripeProcessor) Refund(ctx context.Context, paymentIntentID string, amountCents int64) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*ProcessorEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &ProcessorEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutAsyncFailed, EventCheckoutExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("parse checkout session: %w", err)
		}
		out.Session = toProcessorSession(&s)
		out.PaymentIntentID = out.Session.PaymentIntentID
		out.Metadata = s.Metadata

	case EventPaymentIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		out.PaymentIntentID = pi.ID
		out.Metadata = pi.Metadata

	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("parse charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.Metadata = ch.Metadata
		out.AmountRefunded = ch.AmountRefunded
		out.FullyRefunded = ch.Refunded
	}
	return out, nil
}

func toProcessorSession(s *stripe.CheckoutSession) *ProcessorSession {
	out := &ProcessorSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}
