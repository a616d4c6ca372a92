package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdCreate_Defaults(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "ana@example.com", "")

	ad, err := env.ads.Create(context.Background(), user, AdInput{
		Title:       "  Spring Sale ",
		Description: " Everything must go ",
		TargetURL:   "https://shop.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", ad.Title)
	assert.Equal(t, "Everything must go", ad.Description)
	assert.Equal(t, domain.FormatImage, ad.Format)
	assert.Equal(t, domain.AdStatusDraft, ad.Status)
	assert.Equal(t, user.ID, ad.OwnerID)
}

func TestAdCreate_Validation(t *testing.T) {
	valid := AdInput{Title: "Sale", TargetURL: "https://shop.example.com"}
	tests := []struct {
		name   string
		mutate func(*AdInput)
	}{
		{"missing title", func(in *AdInput) { in.Title = " " }},
		{"long title", func(in *AdInput) { in.Title = strings.Repeat("t", 201) }},
		{"long description", func(in *AdInput) { in.Description = strings.Repeat("d", 5001) }},
		{"unknown format", func(in *AdInput) { in.Format = "hologram" }},
		{"unknown status", func(in *AdInput) { in.Status = "deleted" }},
		{"missing target", func(in *AdInput) { in.TargetURL = "" }},
		{"relative target", func(in *AdInput) { in.TargetURL = "/spring" }},
		{"ftp target", func(in *AdInput) { in.TargetURL = "ftp://shop.example.com" }},
		{"bad image", func(in *AdInput) { in.ImageURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.register(t, "ana@example.com", "")
			in := valid
			tt.mutate(&in)
			_, err := env.ads.Create(context.Background(), user, in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestAdOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com", "")
	other := env.register(t, "other@example.com", "")
	admin := env.register(t, "admin@adbazaar.test", "")

	ad, err := env.ads.Create(ctx, owner, AdInput{Title: "Sale", TargetURL: "https://shop.example.com"})
	require.NoError(t, err)

	_, err = env.ads.Get(ctx, other, ad.ID)
	assert.ErrorIs(t, err, domain.ErrAdNotFound)
	_, err = env.ads.Update(ctx, other, ad.ID, AdInput{Title: "Mine", TargetURL: "https://x.example.com"})
	assert.ErrorIs(t, err, domain.ErrAdNotFound)
	assert.ErrorIs(t, env.ads.Delete(ctx, other, ad.ID), domain.ErrAdNotFound)

	got, err := env.ads.Get(ctx, admin, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, ad.ID, got.ID)

	list, err := env.ads.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ana@example.com", "")
	campaign := env.draftCampaign(t, user)

	updated, err := env.ads.Update(ctx, user, campaign.AdID, AdInput{
		Title:     "Summer Sale",
		TargetURL: "https://shop.example.com/summer",
		Format:    domain.FormatVideo,
		Status:    domain.AdStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer Sale", updated.Title)
	assert.Equal(t, domain.FormatVideo, updated.Format)

	require.NoError(t, env.store.Campaigns().SetStatus(ctx, campaign.ID, domain.CampaignStatusActive))
	assert.ErrorIs(t, env.ads.Delete(ctx, user, campaign.AdID), domain.ErrAdInUse)

	require.NoError(t, env.store.Campaigns().SetStatus(ctx, campaign.ID, domain.CampaignStatusCompleted))
	require.NoError(t, env.ads.Delete(ctx, user, campaign.AdID))
	_, err = env.ads.Get(ctx, user, campaign.AdID)
	assert.ErrorIs(t, err, domain.ErrAdNotFound)
}

func TestCampaignCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ana@example.com", "")
	ad, err := env.ads.Create(ctx, user, AdInput{Title: "Spring Sale", TargetURL: "https://shop.example.com", Format: domain.FormatText})
	require.NoError(t, err)

	c, err := env.campaigns.Create(ctx, user, CampaignInput{
		AdID:         ad.ID,
		SlotType:     domain.SlotBottom,
		Country:      "zz",
		StartAt:      quietStart,
		DurationDays: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", c.Name)
	assert.Equal(t, domain.FormatText, c.Format)
	assert.Equal(t, "ZZ", c.Country)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, domain.CampaignStatusDraft, c.Status)
	assert.True(t, c.Price.IsPositive())

	list, err := env.campaigns.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCampaignCreate_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com", "")
	other := env.register(t, "other@example.com", "")
	ad, err := env.ads.Create(ctx, owner, AdInput{Title: "Sale", TargetURL: "https://shop.example.com"})
	require.NoError(t, err)

	base := CampaignInput{AdID: ad.ID, SlotType: domain.SlotTop, StartAt: quietStart, DurationDays: 7}

	_, err = env.campaigns.Create(ctx, other, base)
	assert.ErrorIs(t, err, domain.ErrAdNotFound)

	missingAd := base
	missingAd.AdID = uuid.Nil
	_, err = env.campaigns.Create(ctx, owner, missingAd)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	badSlot := base
	badSlot.SlotType = "sidebar"
	_, err = env.campaigns.Create(ctx, owner, badSlot)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	tooLong := base
	tooLong.DurationDays = 400
	_, err = env.campaigns.Create(ctx, owner, tooLong)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCampaignUpdate_RepricesDraftsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ana@example.com", "")
	c := env.draftCampaign(t, user)

	updated, err := env.campaigns.Update(ctx, user, c.ID, CampaignInput{
		SlotType:     domain.SlotBottom,
		Country:      "ZZ",
		StartAt:      quietStart,
		DurationDays: 7,
		Name:         "Week long",
	})
	require.NoError(t, err)
	assert.Equal(t, "Week long", updated.Name)
	assert.Equal(t, c.AdID, updated.AdID)
	assert.True(t, updated.Price.GreaterThan(c.Price))

	require.NoError(t, env.store.Campaigns().SetStatus(ctx, c.ID, domain.CampaignStatusPendingPayment))
	_, err = env.campaigns.Update(ctx, user, c.ID, CampaignInput{SlotType: domain.SlotTop, StartAt: quietStart, DurationDays: 1})
	assert.ErrorIs(t, err, domain.ErrCampaignLocked)
	assert.ErrorIs(t, env.campaigns.Delete(ctx, user, c.ID), domain.ErrCampaignLocked)

	require.NoError(t, env.store.Campaigns().SetStatus(ctx, c.ID, domain.CampaignStatusCancelled))
	require.NoError(t, env.campaigns.Delete(ctx, user, c.ID))
	_, err = env.campaigns.Get(ctx, user, c.ID)
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}
