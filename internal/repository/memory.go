package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store backed by maps guarded by read/write
// mutexes. Used when no database is configured and in tests.
type MemoryStore struct {
	txMu      sync.Mutex
	users     *memoryUserStore
	ads       *memoryAdStore
	campaigns *memoryCampaignStore
	payments  *memoryPaymentStore
	referrals *memoryReferralStore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     &memoryUserStore{data: make(map[uuid.UUID]domain.User)},
		ads:       &memoryAdStore{data: make(map[uuid.UUID]domain.Ad)},
		campaigns: &memoryCampaignStore{data: make(map[uuid.UUID]domain.Campaign)},
		payments:  &memoryPaymentStore{data: make(map[uuid.UUID]domain.Payment)},
		referrals: &memoryReferralStore{
			codes:     make(map[string]domain.ReferralCode),
			referrals: make(map[uuid.UUID]domain.Referral),
			rewards:   make(map[uuid.UUID]domain.ReferralReward),
		},
	}
}

func (m *MemoryStore) Users() UserStore         { return m.users }
func (m *MemoryStore) Ads() AdStore             { return m.ads }
func (m *MemoryStore) Campaigns() CampaignStore { return m.campaigns }
func (m *MemoryStore) Payments() PaymentStore   { return m.payments }
func (m *MemoryStore) Referrals() ReferralStore { return m.referrals }

// WithTx serializes transactional callers. Writes made before an error are
// not rolled back.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type memoryUserStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]domain.User
}

func (s *memoryUserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data {
		if strings.EqualFold(existing.Email, u.Email) || existing.ReferralCode == u.ReferralCode {
			return ErrDuplicate
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.data[u.ID] = *u
	return nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUserStore) GetByReferralCode(_ context.Context, code string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data {
		if u.ReferralCode == code {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUserStore) SetReferredBy(_ context.Context, id, referrerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data[id]
	if !ok {
		return ErrNotFound
	}
	u.ReferredByID = &referrerID
	u.UpdatedAt = time.Now()
	s.data[id] = u
	return nil
}

func (s *memoryUserStore) AddCredit(_ context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data[id]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	u.CreditBalance = u.CreditBalance.Add(delta)
	u.UpdatedAt = time.Now()
	s.data[id] = u
	return u.CreditBalance, nil
}

// ---------------------------------------------------------------------------
// Ads
// ---------------------------------------------------------------------------

type memoryAdStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]domain.Ad
}

func (s *memoryAdStore) Create(_ context.Context, ad *domain.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[ad.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	ad.CreatedAt, ad.UpdatedAt = now, now
	s.data[ad.ID] = *ad
	return nil
}

func (s *memoryAdStore) Get(_ context.Context, id uuid.UUID) (*domain.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ad, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ad, nil
}

func (s *memoryAdStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ad, 0)
	for _, ad := range s.data {
		if ad.OwnerID == ownerID {
			out = append(out, ad)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryAdStore) Update(_ context.Context, ad *domain.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[ad.ID]; !ok {
		return ErrNotFound
	}
	ad.UpdatedAt = time.Now()
	s.data[ad.ID] = *ad
	return nil
}

func (s *memoryAdStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// ---------------------------------------------------------------------------
// Campaigns
// ---------------------------------------------------------------------------

type memoryCampaignStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]domain.Campaign
}

func (s *memoryCampaignStore) Create(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[c.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.data[c.ID] = *c
	return nil
}

func (s *memoryCampaignStore) Get(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *memoryCampaignStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Campaign, 0)
	for _, c := range s.data {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryCampaignStore) Update(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	s.data[c.ID] = *c
	return nil
}

func (s *memoryCampaignStore) SetStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	s.data[id] = c
	return nil
}

func (s *memoryCampaignStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	s.data[id] = c
	return true, nil
}

func (s *memoryCampaignStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

type memoryPaymentStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]domain.Payment
}

func (s *memoryPaymentStore) Create(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[p.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.data[p.ID] = *p
	return nil
}

func (s *memoryPaymentStore) Get(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *memoryPaymentStore) GetBySessionID(_ context.Context, sessionID string) (*domain.Payment, error) {
	return s.find(func(p domain.Payment) bool { return sessionID != "" && p.SessionID == sessionID })
}

func (s *memoryPaymentStore) GetByPaymentIntentID(_ context.Context, intentID string) (*domain.Payment, error) {
	return s.find(func(p domain.Payment) bool { return intentID != "" && p.PaymentIntentID == intentID })
}

func (s *memoryPaymentStore) find(match func(domain.Payment) bool) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data {
		if match(p) {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryPaymentStore) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Payment, 0)
	for _, p := range s.data {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryPaymentStore) Update(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	s.data[p.ID] = *p
	return nil
}

func (s *memoryPaymentStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	s.data[id] = p
	return true, nil
}

// ---------------------------------------------------------------------------
// Referrals
// ---------------------------------------------------------------------------

type memoryReferralStore struct {
	mu        sync.RWMutex
	codes     map[string]domain.ReferralCode
	referrals map[uuid.UUID]domain.Referral
	rewards   map[uuid.UUID]domain.ReferralReward
}

func (s *memoryReferralStore) CreateCode(_ context.Context, c *domain.ReferralCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[c.Code]; exists {
		return ErrDuplicate
	}
	c.CreatedAt = time.Now()
	s.codes[c.Code] = *c
	return nil
}

func (s *memoryReferralStore) GetCode(_ context.Context, code string) (*domain.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *memoryReferralStore) ListCodesByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReferralCode, 0)
	for _, c := range s.codes {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryReferralStore) ClaimCodeUse(_ context.Context, code string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return false, ErrNotFound
	}
	if !c.Usable(at) {
		return false, nil
	}
	c.Uses++
	s.codes[code] = c
	return true, nil
}

func (s *memoryReferralStore) CreateReferral(_ context.Context, r *domain.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.referrals {
		if existing.ReferredID == r.ReferredID {
			return ErrDuplicate
		}
	}
	r.CreatedAt = time.Now()
	s.referrals[r.ID] = *r
	return nil
}

func (s *memoryReferralStore) GetReferralByReferred(_ context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.referrals {
		if r.ReferredID == referredID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryReferralStore) ListReferralsByReferrer(_ context.Context, referrerID uuid.UUID) ([]domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Referral, 0)
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryReferralStore) ConvertReferral(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrals[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != domain.ReferralPending {
		return false, nil
	}
	r.Status = domain.ReferralConverted
	r.ConvertedAt = &at
	s.referrals[id] = r
	return true, nil
}

func (s *memoryReferralStore) CreateReward(_ context.Context, r *domain.ReferralReward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rewards[r.ID]; exists {
		return ErrDuplicate
	}
	r.CreatedAt = time.Now()
	s.rewards[r.ID] = *r
	return nil
}

func (s *memoryReferralStore) GetReward(_ context.Context, id uuid.UUID) (*domain.ReferralReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rewards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *memoryReferralStore) ListRewards(_ context.Context, userID uuid.UUID) ([]domain.ReferralReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReferralReward, 0)
	for _, r := range s.rewards {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryReferralStore) RedeemReward(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rewards[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != domain.RewardAvailable {
		return false, nil
	}
	r.Status = domain.RewardRedeemed
	r.RedeemedAt = &at
	s.rewards[id] = r
	return true, nil
}
