package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/pricing"
	"github.com/set-night/adbazaar/internal/repository"
)

type CampaignService struct {
	store repository.Store
	cfg   *config.Config
}

func NewCampaignService(store repository.Store, cfg *config.Config) *CampaignService {
	return &CampaignService{store: store, cfg: cfg}
}

type CampaignInput struct {
	AdID         uuid.UUID       `json:"adId"`
	Name         string          `json:"name"`
	SlotType     domain.SlotType `json:"slotType"`
	Country      string          `json:"country"`
	StartAt      time.Time       `json:"startAt"`
	DurationDays int             `json:"durationDays"`
	Format       domain.AdFormat `json:"format"`
	AIGenerated  bool            `json:"aiGenerated"`
}

func (in CampaignInput) pricingInput() pricing.Input {
	return pricing.Input{
		SlotType:     in.SlotType,
		DurationDays: in.DurationDays,
		Country:      in.Country,
		StartAt:      in.StartAt,
		Format:       in.Format,
		AIGenerated:  in.AIGenerated,
	}
}

// campaignPricing rebuilds the pricing input from a stored campaign.
func campaignPricing(c *domain.Campaign) pricing.Input {
	return pricing.Input{
		SlotType:     c.SlotType,
		DurationDays: c.DurationDays,
		Country:      c.Country,
		StartAt:      c.StartAt,
		Format:       c.Format,
		AIGenerated:  c.AIGenerated,
	}
}

func (s *CampaignService) Create(ctx context.Context, user *domain.User, in CampaignInput) (*domain.Campaign, error) {
	ad, err := s.resolveAd(ctx, user, &in)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Calculate(in.pricingInput())
	if err != nil {
		return nil, err
	}

	c := &domain.Campaign{
		ID:           uuid.New(),
		OwnerID:      user.ID,
		AdID:         ad.ID,
		Name:         in.Name,
		SlotType:     in.SlotType,
		Country:      quote.Country,
		StartAt:      in.StartAt,
		DurationDays: in.DurationDays,
		Format:       in.Format,
		AIGenerated:  in.AIGenerated,
		Price:        quote.Total,
		Currency:     strings.ToUpper(s.cfg.Currency),
		Status:       domain.CampaignStatusDraft,
	}
	if err := s.store.Campaigns().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Campaign, error) {
	c, err := s.store.Campaigns().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c.OwnerID != user.ID && !user.IsAdmin() {
		return nil, domain.ErrCampaignNotFound
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, user *domain.User) ([]domain.Campaign, error) {
	campaigns, err := s.store.Campaigns().ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// Update replaces the campaign's placement and re-prices it. Only drafts change.
func (s *CampaignService) Update(ctx context.Context, user *domain.User, id uuid.UUID, in CampaignInput) (*domain.Campaign, error) {
	c, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !c.Editable() {
		return nil, domain.ErrCampaignLocked
	}
	if in.AdID == uuid.Nil {
		in.AdID = c.AdID
	}
	ad, err := s.resolveAd(ctx, user, &in)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Calculate(in.pricingInput())
	if err != nil {
		return nil, err
	}

	c.AdID = ad.ID
	c.Name = in.Name
	c.SlotType = in.SlotType
	c.Country = quote.Country
	c.StartAt = in.StartAt
	c.DurationDays = in.DurationDays
	c.Format = in.Format
	c.AIGenerated = in.AIGenerated
	c.Price = quote.Total

	if err := s.store.Campaigns().Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignService) Delete(ctx context.Context, user *domain.User, id uuid.UUID) error {
	c, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignStatusActive || c.Status == domain.CampaignStatusPendingPayment {
		return domain.ErrCampaignLocked
	}
	if err := s.store.Campaigns().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

// resolveAd checks the referenced ad and fills defaults taken from it.
func (s *CampaignService) resolveAd(ctx context.Context, user *domain.User, in *CampaignInput) (*domain.Ad, error) {
	if in.AdID == uuid.Nil {
		return nil, fmt.Errorf("%w: adId is required", domain.ErrInvalidInput)
	}
	ad, err := s.store.Ads().Get(ctx, in.AdID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAdNotFound
		}
		return nil, fmt.Errorf("get ad: %w", err)
	}
	if ad.OwnerID != user.ID {
		return nil, domain.ErrAdNotFound
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = ad.Title
	}
	if len([]rune(in.Name)) > maxTitleLen {
		return nil, fmt.Errorf("%w: name is too long", domain.ErrInvalidInput)
	}
	if in.Format == "" {
		in.Format = ad.Format
	}
	return ad, nil
}
