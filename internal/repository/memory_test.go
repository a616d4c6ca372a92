package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(email, code string) *domain.User {
	return &domain.User{ID: uuid.New(), Email: email, ReferralCode: code, Role: domain.RoleUser}
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	u := newUser("Ana@Example.com", "ABCD2345")
	require.NoError(t, st.Users().Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	assert.ErrorIs(t, st.Users().Create(ctx, newUser("ana@example.com", "WXYZ2345")), ErrDuplicate)
	assert.ErrorIs(t, st.Users().Create(ctx, newUser("bob@example.com", "ABCD2345")), ErrDuplicate)

	got, err := st.Users().GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = st.Users().GetByReferralCode(ctx, "ABCD2345")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = st.Users().GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	balance, err := st.Users().AddCredit(ctx, u.ID, decimal.NewFromInt(25))
	require.NoError(t, err)
	balance, err = st.Users().AddCredit(ctx, u.ID, decimal.NewFromFloat(-5.5))
	require.NoError(t, err)
	assert.Equal(t, "19.5", balance.String())

	referrer := uuid.New()
	require.NoError(t, st.Users().SetReferredBy(ctx, u.ID, referrer))
	got, err = st.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReferredByID)
	assert.Equal(t, referrer, *got.ReferredByID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	u := newUser("ana@example.com", "ABCD2345")
	require.NoError(t, st.Users().Create(ctx, u))

	got, err := st.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.Email = "mutated@example.com"

	again, err := st.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", again.Email)
}

func TestMemoryPayments_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	p := &domain.Payment{ID: uuid.New(), SessionID: "cs_1", Status: domain.PaymentStatusPending}
	require.NoError(t, st.Payments().Create(ctx, p))
	assert.ErrorIs(t, st.Payments().Create(ctx, p), ErrDuplicate)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.Payments().TransitionStatus(ctx, p.ID, domain.PaymentStatusPending, domain.PaymentStatusCompleted)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := st.Payments().GetBySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	_, err = st.Payments().TransitionStatus(ctx, uuid.New(), domain.PaymentStatusPending, domain.PaymentStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Payments().GetByPaymentIntentID(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReferrals(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	owner := uuid.New()
	referred := uuid.New()

	code := &domain.ReferralCode{Code: "ABCD2345", OwnerID: owner, RewardType: domain.RewardCredit, Active: true}
	require.NoError(t, st.Referrals().CreateCode(ctx, code))
	assert.ErrorIs(t, st.Referrals().CreateCode(ctx, code), ErrDuplicate)
	limited := &domain.ReferralCode{Code: "LMTD2345", OwnerID: owner, RewardType: domain.RewardCredit, MaxUses: 1, Active: true}
	require.NoError(t, st.Referrals().CreateCode(ctx, limited))
	claimed, err := st.Referrals().ClaimCodeUse(ctx, "LMTD2345", time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = st.Referrals().ClaimCodeUse(ctx, "LMTD2345", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
	got, err := st.Referrals().GetCode(ctx, "LMTD2345")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Uses)

	_, err = st.Referrals().ClaimCodeUse(ctx, "NOPE2345", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	ref := &domain.Referral{ID: uuid.New(), Code: "ABCD2345", ReferrerID: owner, ReferredID: referred, Status: domain.ReferralPending}
	require.NoError(t, st.Referrals().CreateReferral(ctx, ref))
	dup := *ref
	dup.ID = uuid.New()
	assert.ErrorIs(t, st.Referrals().CreateReferral(ctx, &dup), ErrDuplicate)

	now := time.Now()
	ok, err := st.Referrals().ConvertReferral(ctx, ref.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.Referrals().ConvertReferral(ctx, ref.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := st.Referrals().ListReferralsByReferrer(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.ReferralConverted, list[0].Status)

	reward := &domain.ReferralReward{ID: uuid.New(), ReferralID: ref.ID, UserID: referred, Type: domain.RewardDiscount, Value: decimal.NewFromInt(10), Status: domain.RewardAvailable}
	require.NoError(t, st.Referrals().CreateReward(ctx, reward))

	ok, err = st.Referrals().RedeemReward(ctx, reward.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.Referrals().RedeemReward(ctx, reward.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.Referrals().RedeemReward(ctx, uuid.New(), now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCampaigns_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	c := &domain.Campaign{ID: uuid.New(), Status: domain.CampaignStatusDraft}
	require.NoError(t, st.Campaigns().Create(ctx, c))

	ok, err := st.Campaigns().TransitionStatus(ctx, c.ID, domain.CampaignStatusDraft, domain.CampaignStatusPendingPayment)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.Campaigns().TransitionStatus(ctx, c.ID, domain.CampaignStatusDraft, domain.CampaignStatusPendingPayment)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.Campaigns().TransitionStatus(ctx, uuid.New(), domain.CampaignStatusDraft, domain.CampaignStatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WithTx(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx Store) error {
		return tx.Users().Create(ctx, newUser("ana@example.com", "ABCD2345"))
	})
	require.NoError(t, err)

	err = st.WithTx(ctx, func(Store) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = st.Users().GetByEmail(ctx, "ana@example.com")
	assert.NoError(t, err)
}
