package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/pricing"
	"github.com/shopspring/decimal"
)

const (
	dealValidity        = 7 * 24 * time.Hour
	defaultDealDiscount = 15
	minDealDiscount     = 5
	maxDealDiscount     = 50
)

const dealsSystemPrompt = `You create limited-time promotional deals for ad slots on an online ad marketplace.
Slot types are "top", "mid" and "bottom". Formats are "image", "video", "carousel", "text" and "html5".
Reply with a JSON object {"deals": [...]} where each deal has the keys "title", "description",
"slotType", "format", "durationDays" and "discountPercent" (integer between 5 and 50).`

type DealService struct {
	gen   Generator
	cache Cache
	now   func() time.Time
}

func NewDealService(gen Generator, cache Cache) *DealService {
	return &DealService{gen: gen, cache: cache, now: time.Now}
}

type DealsInput struct {
	Category string  `json:"category"`
	Country  string  `json:"country"`
	Budget   float64 `json:"budget"`
	Count    int     `json:"count"`
}

type DealsResult struct {
	Deals    []domain.Deal `json:"deals"`
	Fallback bool          `json:"fallback"`
	Cached   bool          `json:"cached"`
}

type llmDeal struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	SlotType        domain.SlotType `json:"slotType"`
	Format          domain.AdFormat `json:"format"`
	DurationDays    int             `json:"durationDays"`
	OriginalPrice   float64         `json:"originalPrice"`
	DealPrice       float64         `json:"dealPrice"`
	DiscountPercent float64         `json:"discountPercent"`
}

func (in *DealsInput) validate() error {
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = "general"
	}
	if len([]rune(in.Category)) > maxTitleLen {
		return fmt.Errorf("%w: category is too long", domain.ErrInvalidInput)
	}
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", domain.ErrInvalidInput)
	}
	if in.Count == 0 {
		in.Count = config.DefaultDealCount
	}
	if in.Count < 1 || in.Count > config.MaxDealCount {
		return fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidInput, config.MaxDealCount)
	}
	return nil
}

func (in DealsInput) cacheKey() string {
	return fmt.Sprintf("deals:%s:%s:%.2f:%d", strings.ToLower(in.Category), in.Country, in.Budget, in.Count)
}

func (s *DealService) Generate(ctx context.Context, in DealsInput) (*DealsResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	key := in.cacheKey()
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			slog.Warn("deal cache read failed", "error", err)
		} else if ok {
			var cached []domain.Deal
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &DealsResult{Deals: cached, Cached: true}, nil
			}
		}
	}

	if s.gen == nil {
		return &DealsResult{Deals: s.fallbackDeals(in), Fallback: true}, nil
	}

	var reply struct {
		Deals []llmDeal `json:"deals"`
	}
	if err := s.gen.GenerateJSON(ctx, dealsSystemPrompt, dealsPrompt(in), &reply); err != nil {
		slog.Warn("deal generation failed, using fallback", "error", err)
		return &DealsResult{Deals: s.fallbackDeals(in), Fallback: true}, nil
	}

	deals := make([]domain.Deal, 0, in.Count)
	for _, d := range reply.Deals {
		deal, ok := s.normalizeDeal(d, in.Country)
		if !ok {
			continue
		}
		deals = append(deals, deal)
		if len(deals) == in.Count {
			break
		}
	}
	if len(deals) == 0 {
		slog.Warn("deal reply had no usable deals, using fallback")
		return &DealsResult{Deals: s.fallbackDeals(in), Fallback: true}, nil
	}

	if s.cache != nil {
		if raw, err := json.Marshal(deals); err == nil {
			if err := s.cache.Set(ctx, key, raw); err != nil {
				slog.Warn("deal cache write failed", "error", err)
			}
		}
	}
	return &DealsResult{Deals: deals}, nil
}

func dealsPrompt(in DealsInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create %d deals for advertisers in the %q category.\n", in.Count, in.Category)
	if in.Country != "" {
		fmt.Fprintf(&b, "Target country: %s\n", in.Country)
	}
	if in.Budget > 0 {
		fmt.Fprintf(&b, "Advertiser budget: $%.2f\n", in.Budget)
	}
	b.WriteString("Each deal should have a catchy title and a one sentence description.")
	return b.String()
}

// normalizeDeal clamps the generated fields to valid values and prices the
// deal with the pricing engine whenever the reply left prices out.
func (s *DealService) normalizeDeal(d llmDeal, country string) (domain.Deal, bool) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return domain.Deal{}, false
	}
	if !pricing.ValidSlotType(d.SlotType) {
		d.SlotType = domain.SlotMid
	}
	if !pricing.ValidFormat(d.Format) {
		d.Format = domain.FormatImage
	}
	if d.DurationDays < config.MinCampaignDays || d.DurationDays > config.MaxCampaignDays {
		d.DurationDays = 7
	}

	now := s.now()
	original := decimal.NewFromFloat(d.OriginalPrice).Round(2)
	if !original.IsPositive() {
		quote, err := pricing.Calculate(pricing.Input{
			SlotType:     d.SlotType,
			DurationDays: d.DurationDays,
			Country:      country,
			StartAt:      now,
			Format:       d.Format,
		})
		if err != nil {
			return domain.Deal{}, false
		}
		original = quote.Total
	}

	pct := int(d.DiscountPercent)
	dealPrice := decimal.NewFromFloat(d.DealPrice).Round(2)
	if dealPrice.IsPositive() && dealPrice.LessThan(original) && pct == 0 {
		pct = int(hundred.Sub(dealPrice.Mul(hundred).Div(original)).Round(0).IntPart())
	}
	if pct == 0 {
		pct = defaultDealDiscount
	}
	pct = min(max(pct, minDealDiscount), maxDealDiscount)
	dealPrice = original.Sub(original.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)).Round(2)

	return domain.Deal{
		Title:           title,
		Description:     strings.TrimSpace(d.Description),
		SlotType:        d.SlotType,
		Format:          d.Format,
		DurationDays:    d.DurationDays,
		OriginalPrice:   original,
		DealPrice:       dealPrice,
		DiscountPercent: pct,
		ValidUntil:      now.Add(dealValidity).UTC().Truncate(time.Hour),
	}, true
}

var staticDeals = []llmDeal{
	{Title: "Prime Time Spotlight", Description: "Put your brand in the top slot during the evening rush.", SlotType: domain.SlotTop, Format: domain.FormatImage, DurationDays: 7, DiscountPercent: 20},
	{Title: "Month of Reach", Description: "Thirty days in the mid slot at a locked-in rate.", SlotType: domain.SlotMid, Format: domain.FormatCarousel, DurationDays: 30, DiscountPercent: 25},
	{Title: "Starter Boost", Description: "Try video ads in the bottom slot for a week.", SlotType: domain.SlotBottom, Format: domain.FormatVideo, DurationDays: 7, DiscountPercent: 15},
	{Title: "Fortnight Feature", Description: "Two weeks of top placement for text ads.", SlotType: domain.SlotTop, Format: domain.FormatText, DurationDays: 14, DiscountPercent: 18},
	{Title: "Quarter Saver", Description: "Ninety days of mid slot coverage at our deepest tier.", SlotType: domain.SlotMid, Format: domain.FormatImage, DurationDays: 90, DiscountPercent: 30},
}

func (s *DealService) fallbackDeals(in DealsInput) []domain.Deal {
	deals := make([]domain.Deal, 0, in.Count)
	for i := 0; len(deals) < in.Count; i++ {
		d := staticDeals[i%len(staticDeals)]
		if i >= len(staticDeals) {
			d.Title = fmt.Sprintf("%s #%d", d.Title, i/len(staticDeals)+1)
		}
		deal, ok := s.normalizeDeal(d, in.Country)
		if !ok {
			continue
		}
		deals = append(deals, deal)
	}
	return deals
}
