package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/pricing"
	"github.com/set-night/adbazaar/internal/repository"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
)

type AdService struct {
	store repository.Store
}

func NewAdService(store repository.Store) *AdService {
	return &AdService{store: store}
}

type AdInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl"`
	TargetURL   string          `json:"targetUrl"`
	Format      domain.AdFormat `json:"format"`
	AIGenerated bool            `json:"aiGenerated"`
	Status      domain.AdStatus `json:"status"`
}

func (in *AdInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if len([]rune(in.Title)) > maxTitleLen {
		return fmt.Errorf("%w: title is too long", domain.ErrInvalidInput)
	}
	if len([]rune(in.Description)) > maxDescriptionLen {
		return fmt.Errorf("%w: description is too long", domain.ErrInvalidInput)
	}
	if in.Format == "" {
		in.Format = domain.FormatImage
	}
	if !pricing.ValidFormat(in.Format) {
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, in.Format)
	}
	if in.Status == "" {
		in.Status = domain.AdStatusDraft
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}
	if err := validateURL(in.TargetURL, true); err != nil {
		return fmt.Errorf("%w: target url: %v", domain.ErrInvalidInput, err)
	}
	if err := validateURL(in.ImageURL, false); err != nil {
		return fmt.Errorf("%w: image url: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (s *AdService) Create(ctx context.Context, user *domain.User, in AdInput) (*domain.Ad, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ad := &domain.Ad{
		ID:          uuid.New(),
		OwnerID:     user.ID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    in.ImageURL,
		TargetURL:   in.TargetURL,
		Format:      in.Format,
		AIGenerated: in.AIGenerated,
		Status:      in.Status,
	}
	if err := s.store.Ads().Create(ctx, ad); err != nil {
		return nil, fmt.Errorf("create ad: %w", err)
	}
	return ad, nil
}

func (s *AdService) Get(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Ad, error) {
	ad, err := s.store.Ads().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAdNotFound
		}
		return nil, fmt.Errorf("get ad: %w", err)
	}
	if ad.OwnerID != user.ID && !user.IsAdmin() {
		return nil, domain.ErrAdNotFound
	}
	return ad, nil
}

func (s *AdService) List(ctx context.Context, user *domain.User) ([]domain.Ad, error) {
	ads, err := s.store.Ads().ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	return ads, nil
}

func (s *AdService) Update(ctx context.Context, user *domain.User, id uuid.UUID, in AdInput) (*domain.Ad, error) {
	ad, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	ad.Title = in.Title
	ad.Description = strings.TrimSpace(in.Description)
	ad.ImageURL = in.ImageURL
	ad.TargetURL = in.TargetURL
	ad.Format = in.Format
	ad.AIGenerated = in.AIGenerated
	ad.Status = in.Status

	if err := s.store.Ads().Update(ctx, ad); err != nil {
		return nil, fmt.Errorf("update ad: %w", err)
	}
	return ad, nil
}

func (s *AdService) Delete(ctx context.Context, user *domain.User, id uuid.UUID) error {
	ad, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}

	campaigns, err := s.store.Campaigns().ListByOwner(ctx, ad.OwnerID)
	if err != nil {
		return fmt.Errorf("list campaigns: %w", err)
	}
	for _, c := range campaigns {
		if c.AdID == ad.ID && (c.Status == domain.CampaignStatusActive || c.Status == domain.CampaignStatusPendingPayment) {
			return domain.ErrAdInUse
		}
	}

	if err := s.store.Ads().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete ad: %w", err)
	}
	return nil
}

func validateURL(raw string, required bool) error {
	if raw == "" {
		if required {
			return errors.New("is required")
		}
		return nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	if blockedHost(u.Hostname()) {
		return errors.New("must point to a public host")
	}
	return nil
}
