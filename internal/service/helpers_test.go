package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Tuesday 07:30 UTC prices a one day bottom image slot at exactly 40.00.
var quietStart = time.Date(2026, time.March, 3, 7, 30, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:               "test-secret",
		PublicURL:               "https://adbazaar.test",
		Currency:                "usd",
		ReferralCreditReward:    25,
		ReferralWelcomeDiscount: 10,
		AdminEmails:             []string{"admin@adbazaar.test"},
	}
}

type recordingNotifier struct {
	mu        sync.Mutex
	signups   int
	completed int
	refunded  []decimal.Decimal
	converted int
	errors    int
}

func (n *recordingNotifier) Signup(*domain.User, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signups++
}

func (n *recordingNotifier) PaymentCompleted(*domain.Payment, *domain.Campaign) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
}

func (n *recordingNotifier) PaymentRefunded(_ *domain.Payment, amount decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunded = append(n.refunded, amount)
}

func (n *recordingNotifier) ReferralConverted(*domain.Referral, *domain.ReferralReward) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.converted++
}

func (n *recordingNotifier) Error(error, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors++
}

type fakeProcessor struct {
	mu        sync.Mutex
	sessions  map[string]*ProcessorSession
	created   []CheckoutRequest
	refunds   []int64
	event     *ProcessorEvent
	createErr error
	refundErr error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: make(map[string]*ProcessorSession)}
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, req)
	id := fmt.Sprintf("cs_test_%d", len(p.created))
	sess := &ProcessorSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/" + id,
		Status:        "open",
		PaymentStatus: "unpaid",
		Metadata:      map[string]string{"payment_id": req.PaymentID},
	}
	p.sessions[id] = sess
	return sess, nil
}

func (p *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	out := *sess
	return &out, nil
}

func (p *fakeProcessor) Refund(_ context.Context, _ string, cents int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return p.refundErr
	}
	p.refunds = append(p.refunds, cents)
	return nil
}

func (p *fakeProcessor) ParseWebhook(_ []byte, signature string) (*ProcessorEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if signature != "valid" {
		return nil, fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
	}
	if p.event == nil {
		return &ProcessorEvent{ID: "evt_empty", Type: "customer.created"}, nil
	}
	out := *p.event
	return &out, nil
}

// markPaid flips a session to paid the way Stripe does after checkout.
func (p *fakeProcessor) markPaid(id, intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess := p.sessions[id]
	sess.Status = "complete"
	sess.PaymentStatus = "paid"
	sess.PaymentIntentID = intentID
}

func (p *fakeProcessor) expire(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id].Status = "expired"
}

type fakeGenerator struct {
	reply    string
	err      error
	imageURL string
	imageErr error
	calls    int
	prompts  []string
}

func (g *fakeGenerator) GenerateJSON(_ context.Context, _, prompt string, out any) error {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return g.err
	}
	return decodeJSONReply(g.reply, out)
}

func (g *fakeGenerator) GenerateImage(context.Context, string) (string, error) {
	if g.imageErr != nil {
		return "", g.imageErr
	}
	if g.imageURL == "" {
		return "", domain.ErrImageUnsupported
	}
	return g.imageURL, nil
}

type testEnv struct {
	store     *repository.MemoryStore
	cfg       *config.Config
	notifier  *recordingNotifier
	processor *fakeProcessor
	referrals *ReferralService
	auth      *AuthService
	ads       *AdService
	campaigns *CampaignService
	payments  *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	cfg := testConfig()
	notifier := &recordingNotifier{}
	processor := newFakeProcessor()

	referrals := NewReferralService(store, notifier, cfg)
	auth := NewAuthService(store, referrals, notifier, cfg)
	auth.cost = bcrypt.MinCost

	return &testEnv{
		store:     store,
		cfg:       cfg,
		notifier:  notifier,
		processor: processor,
		referrals: referrals,
		auth:      auth,
		ads:       NewAdService(store),
		campaigns: NewCampaignService(store, cfg),
		payments:  NewPaymentService(store, processor, referrals, notifier, cfg),
	}
}

// register signs up a user and returns its stored record.
func (e *testEnv) register(t *testing.T, email, referralCode string) *domain.User {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Email:        email,
		Password:     "correct horse",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	return e.reload(t, res.User)
}

func (e *testEnv) reload(t *testing.T, u *domain.User) *domain.User {
	t.Helper()
	fresh, err := e.store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}

// draftCampaign creates an ad and a one day campaign priced at 40.00.
func (e *testEnv) draftCampaign(t *testing.T, owner *domain.User) *domain.Campaign {
	t.Helper()
	ctx := context.Background()
	ad, err := e.ads.Create(ctx, owner, AdInput{
		Title:     "Spring Sale",
		TargetURL: "https://shop.example.com/spring",
	})
	require.NoError(t, err)
	c, err := e.campaigns.Create(ctx, owner, CampaignInput{
		AdID:         ad.ID,
		SlotType:     domain.SlotBottom,
		Country:      "ZZ",
		StartAt:      quietStart,
		DurationDays: 1,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) grantReward(t *testing.T, user *domain.User, typ domain.RewardType, value int64) *domain.ReferralReward {
	t.Helper()
	r := &domain.ReferralReward{
		ID:     uuid.New(),
		UserID: user.ID,
		Type:   typ,
		Value:  decimal.NewFromInt(value),
		Status: domain.RewardAvailable,
	}
	require.NoError(t, e.store.Referrals().CreateReward(context.Background(), r))
	return r
}
