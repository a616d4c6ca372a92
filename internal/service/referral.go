package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/repository"
	"github.com/shopspring/decimal"
)

// No 0/O or 1/I so codes survive being read aloud.
const referralCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type ReferralService struct {
	store    repository.Store
	notifier Notifier
	cfg      *config.Config
	now      func() time.Time
}

func NewReferralService(store repository.Store, notifier Notifier, cfg *config.Config) *ReferralService {
	return &ReferralService{store: store, notifier: notifier, cfg: cfg, now: time.Now}
}

type CodeInput struct {
	RewardType  domain.RewardType `json:"rewardType"`
	RewardValue float64           `json:"rewardValue"`
	MaxUses     int               `json:"maxUses"`
	ExpiresAt   *time.Time        `json:"expiresAt"`
}

// CodeInfo is the public view of a referral code returned by validation.
type CodeInfo struct {
	Code        string            `json:"code"`
	OwnerID     uuid.UUID         `json:"ownerId"`
	OwnerName   string            `json:"ownerName"`
	RewardType  domain.RewardType `json:"rewardType"`
	RewardValue decimal.Decimal   `json:"rewardValue"`
	Description string            `json:"description"`
}

func generateReferralCode() (string, error) {
	code := make([]byte, config.ReferralCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("random int: %w", err)
		}
		code[i] = referralCodeCharset[n.Int64()]
	}
	return string(code), nil
}

// uniqueCode returns a code not yet used by any user or referral code.
func (s *ReferralService) uniqueCode(ctx context.Context, st repository.Store) (string, error) {
	for i := 0; i < config.ReferralCodeAttempts; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		_, err = st.Referrals().GetCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			_, err = st.Users().GetByReferralCode(ctx, code)
			if errors.Is(err, repository.ErrNotFound) {
				return code, nil
			}
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("check referral code: %w", err)
		}
	}
	return "", fmt.Errorf("failed to generate unique referral code after %d attempts", config.ReferralCodeAttempts)
}

func (s *ReferralService) defaultCode(ownerID uuid.UUID, code string) *domain.ReferralCode {
	return &domain.ReferralCode{
		Code:        code,
		OwnerID:     ownerID,
		RewardType:  domain.RewardCredit,
		RewardValue: decimal.NewFromFloat(s.cfg.ReferralCreditReward),
		Active:      true,
	}
}

// DefaultCode returns the code every user receives at registration.
func (s *ReferralService) DefaultCode(ctx context.Context, user *domain.User) (*domain.ReferralCode, error) {
	code, err := s.store.Referrals().GetCode(ctx, user.ReferralCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, fmt.Errorf("get referral code: %w", err)
	}
	return code, nil
}

func (s *ReferralService) ListCodes(ctx context.Context, userID uuid.UUID) ([]domain.ReferralCode, error) {
	codes, err := s.store.Referrals().ListCodesByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list referral codes: %w", err)
	}
	return codes, nil
}

// GenerateCode creates an additional code for the user with a custom reward.
func (s *ReferralService) GenerateCode(ctx context.Context, userID uuid.UUID, in CodeInput) (*domain.ReferralCode, error) {
	if in.RewardType == "" {
		in.RewardType = domain.RewardCredit
	}
	if !in.RewardType.Valid() {
		return nil, fmt.Errorf("%w: unknown reward type %q", domain.ErrInvalidInput, in.RewardType)
	}
	if in.RewardValue < 0 {
		return nil, fmt.Errorf("%w: reward value must not be negative", domain.ErrInvalidInput)
	}
	if in.RewardType == domain.RewardDiscount && in.RewardValue > 100 {
		return nil, fmt.Errorf("%w: discount cannot exceed 100 percent", domain.ErrInvalidInput)
	}
	if in.MaxUses < 0 {
		return nil, fmt.Errorf("%w: max uses must not be negative", domain.ErrInvalidInput)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", domain.ErrInvalidInput)
	}

	value := decimal.NewFromFloat(in.RewardValue).Round(2)
	if value.IsZero() {
		switch in.RewardType {
		case domain.RewardCredit:
			value = decimal.NewFromFloat(s.cfg.ReferralCreditReward)
		case domain.RewardDiscount:
			value = decimal.NewFromFloat(s.cfg.ReferralWelcomeDiscount)
		}
	}

	var created *domain.ReferralCode
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		code, err := s.uniqueCode(ctx, st)
		if err != nil {
			return err
		}
		created = &domain.ReferralCode{
			Code:        code,
			OwnerID:     userID,
			RewardType:  in.RewardType,
			RewardValue: value,
			MaxUses:     in.MaxUses,
			ExpiresAt:   in.ExpiresAt,
			Active:      true,
		}
		if err := st.Referrals().CreateCode(ctx, created); err != nil {
			return fmt.Errorf("create referral code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ReferralService) ValidateCode(ctx context.Context, raw string) (*CodeInfo, error) {
	code := normalizeCode(raw)
	if code == "" {
		return nil, fmt.Errorf("%w: referral code is required", domain.ErrInvalidInput)
	}

	rc, err := s.store.Referrals().GetCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, fmt.Errorf("get referral code: %w", err)
	}
	if !rc.Usable(s.now()) {
		return nil, domain.ErrReferralInactive
	}

	info := &CodeInfo{
		Code:        rc.Code,
		OwnerID:     rc.OwnerID,
		RewardType:  rc.RewardType,
		RewardValue: rc.RewardValue,
		Description: describeReward(rc.RewardType, rc.RewardValue),
	}
	if owner, err := s.store.Users().GetByID(ctx, rc.OwnerID); err == nil {
		info.OwnerName = owner.Name
	}
	return info, nil
}

// ApplyCode links the user to the code's owner as a pending referral.
func (s *ReferralService) ApplyCode(ctx context.Context, userID uuid.UUID, raw string) (*domain.Referral, error) {
	info, err := s.ValidateCode(ctx, raw)
	if err != nil {
		return nil, err
	}
	if info.OwnerID == userID {
		return nil, domain.ErrReferralSelf
	}

	referral := &domain.Referral{
		ID:         uuid.New(),
		Code:       info.Code,
		ReferrerID: info.OwnerID,
		ReferredID: userID,
		Status:     domain.ReferralPending,
	}

	err = s.store.WithTx(ctx, func(st repository.Store) error {
		user, err := st.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}
		if user.ReferredByID != nil {
			return domain.ErrAlreadyReferred
		}

		claimed, err := st.Referrals().ClaimCodeUse(ctx, info.Code, s.now())
		if err != nil {
			return fmt.Errorf("claim code use: %w", err)
		}
		if !claimed {
			return domain.ErrReferralInactive
		}
		if err := st.Referrals().CreateReferral(ctx, referral); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.ErrAlreadyReferred
			}
			return fmt.Errorf("create referral: %w", err)
		}
		if err := st.Users().SetReferredBy(ctx, userID, info.OwnerID); err != nil {
			return fmt.Errorf("set referred by: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("referral code applied", "user_id", userID, "referrer_id", info.OwnerID, "code", info.Code)
	return referral, nil
}

// ProcessReward converts the user's pending referral, if any, and issues the
// rewards. Safe to call repeatedly: only the first call converts.
func (s *ReferralService) ProcessReward(ctx context.Context, referredID uuid.UUID) (*domain.ReferralReward, error) {
	var (
		referral *domain.Referral
		reward   *domain.ReferralReward
	)
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		var err error
		referral, reward, err = s.processReward(ctx, st, referredID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reward != nil {
		s.notifier.ReferralConverted(referral, reward)
	}
	return reward, nil
}

// processReward runs inside the caller's transaction.
func (s *ReferralService) processReward(ctx context.Context, st repository.Store, referredID uuid.UUID) (*domain.Referral, *domain.ReferralReward, error) {
	referral, err := st.Referrals().GetReferralByReferred(ctx, referredID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get referral: %w", err)
	}
	if referral.Status != domain.ReferralPending {
		return nil, nil, nil
	}

	now := s.now()
	converted, err := st.Referrals().ConvertReferral(ctx, referral.ID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("convert referral: %w", err)
	}
	if !converted {
		return nil, nil, nil
	}
	referral.Status = domain.ReferralConverted
	referral.ConvertedAt = &now

	code, err := st.Referrals().GetCode(ctx, referral.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("get referral code: %w", err)
	}

	reward := &domain.ReferralReward{
		ID:         uuid.New(),
		ReferralID: referral.ID,
		UserID:     referral.ReferrerID,
		Type:       code.RewardType,
		Value:      code.RewardValue,
		Status:     domain.RewardAvailable,
	}
	// Credit goes straight onto the balance, so the reward is born redeemed.
	if reward.Type == domain.RewardCredit {
		reward.Status = domain.RewardRedeemed
		reward.RedeemedAt = &now
	}
	if err := st.Referrals().CreateReward(ctx, reward); err != nil {
		return nil, nil, fmt.Errorf("create referrer reward: %w", err)
	}
	if reward.Type == domain.RewardCredit {
		if _, err := st.Users().AddCredit(ctx, referral.ReferrerID, reward.Value); err != nil {
			return nil, nil, fmt.Errorf("add referrer credit: %w", err)
		}
	}

	if s.cfg.ReferralWelcomeDiscount > 0 {
		welcome := &domain.ReferralReward{
			ID:         uuid.New(),
			ReferralID: referral.ID,
			UserID:     referredID,
			Type:       domain.RewardDiscount,
			Value:      decimal.NewFromFloat(s.cfg.ReferralWelcomeDiscount),
			Status:     domain.RewardAvailable,
		}
		if err := st.Referrals().CreateReward(ctx, welcome); err != nil {
			return nil, nil, fmt.Errorf("create welcome reward: %w", err)
		}
	}

	slog.Info("referral converted", "referral_id", referral.ID, "referrer_id", referral.ReferrerID,
		"reward_type", reward.Type, "reward_value", reward.Value.String())
	return referral, reward, nil
}

func (s *ReferralService) ListRewards(ctx context.Context, userID uuid.UUID) ([]domain.ReferralReward, error) {
	rewards, err := s.store.Referrals().ListRewards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

func (s *ReferralService) RedeemReward(ctx context.Context, userID, rewardID uuid.UUID) (*domain.ReferralReward, error) {
	reward, err := s.store.Referrals().GetReward(ctx, rewardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrRewardNotFound
		}
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if reward.UserID != userID {
		return nil, domain.ErrRewardNotFound
	}

	now := s.now()
	ok, err := s.store.Referrals().RedeemReward(ctx, rewardID, now)
	if err != nil {
		return nil, fmt.Errorf("redeem reward: %w", err)
	}
	if !ok {
		return nil, domain.ErrRewardRedeemed
	}
	reward.Status = domain.RewardRedeemed
	reward.RedeemedAt = &now
	return reward, nil
}

func (s *ReferralService) Stats(ctx context.Context, userID uuid.UUID) (*domain.ReferralStats, error) {
	referrals, err := s.store.Referrals().ListReferralsByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	rewards, err := s.store.Referrals().ListRewards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}

	stats := &domain.ReferralStats{Invited: len(referrals), CreditsEarned: decimal.Zero}
	for _, r := range referrals {
		if r.Status == domain.ReferralConverted {
			stats.Converted++
		}
	}
	for _, r := range rewards {
		if r.Type == domain.RewardCredit {
			stats.CreditsEarned = stats.CreditsEarned.Add(r.Value)
		}
		if r.Status == domain.RewardAvailable {
			stats.Available++
		}
	}
	return stats, nil
}

// bestReward picks the reward a checkout should consume: a free slot wins,
// otherwise the largest discount.
func bestReward(rewards []domain.ReferralReward) *domain.ReferralReward {
	var best *domain.ReferralReward
	for i := range rewards {
		r := &rewards[i]
		if r.Status != domain.RewardAvailable {
			continue
		}
		switch r.Type {
		case domain.RewardFreeSlot:
			return r
		case domain.RewardDiscount:
			if best == nil || r.Value.GreaterThan(best.Value) {
				best = r
			}
		}
	}
	return best
}

func describeReward(t domain.RewardType, v decimal.Decimal) string {
	switch t {
	case domain.RewardCredit:
		return fmt.Sprintf("$%s account credit", v.StringFixed(2))
	case domain.RewardDiscount:
		return fmt.Sprintf("%s%% off a campaign", v.String())
	case domain.RewardFreeSlot:
		return "one free campaign slot"
	}
	return string(t)
}

func normalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
