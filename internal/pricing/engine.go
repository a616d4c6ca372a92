// Package pricing computes campaign prices from static rate tables.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
)

type Input struct {
	SlotType     domain.SlotType `json:"slotType"`
	DurationDays int             `json:"durationDays"`
	Country      string          `json:"country"`
	StartAt      time.Time       `json:"startAt"`
	Format       domain.AdFormat `json:"format"`
	AIGenerated  bool            `json:"aiGenerated"`
}

type Breakdown struct {
	SlotType         domain.SlotType `json:"slotType"`
	Country          string          `json:"country"`
	Format           domain.AdFormat `json:"format"`
	DurationDays     int             `json:"durationDays"`
	BaseRate         decimal.Decimal `json:"baseRate"`
	SlotMultiplier   float64         `json:"slotMultiplier"`
	GeoMultiplier    float64         `json:"geoMultiplier"`
	TimeMultiplier   float64         `json:"timeMultiplier"`
	FormatMultiplier float64         `json:"formatMultiplier"`
	DurationDiscount float64         `json:"durationDiscount"`
	DemandMultiplier float64         `json:"demandMultiplier"`
	DailyRate        decimal.Decimal `json:"dailyRate"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Savings          decimal.Decimal `json:"savings"`
	AIBonus          decimal.Decimal `json:"aiBonus"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
}

// Validate checks the input ranges accepted by Calculate.
func (in Input) Validate() error {
	if _, ok := baseRates[in.SlotType]; !ok {
		return fmt.Errorf("%w: unknown slot type %q", domain.ErrInvalidInput, in.SlotType)
	}
	if _, ok := formatMultipliers[in.Format]; !ok {
		return fmt.Errorf("%w: unknown ad format %q", domain.ErrInvalidInput, in.Format)
	}
	if in.DurationDays < config.MinCampaignDays || in.DurationDays > config.MaxCampaignDays {
		return fmt.Errorf("%w: duration must be between %d and %d days",
			domain.ErrInvalidInput, config.MinCampaignDays, config.MaxCampaignDays)
	}
	if in.StartAt.IsZero() {
		return fmt.Errorf("%w: start time is required", domain.ErrInvalidInput)
	}
	return nil
}

// Calculate prices a placement. It is a pure function of its input.
//
//	total = base × slot × geo × time × format × durationDiscount × demand × days + aiBonus
func Calculate(in Input) (Breakdown, error) {
	if err := in.Validate(); err != nil {
		return Breakdown{}, err
	}

	hour := in.StartAt.Hour()
	weekday := in.StartAt.Weekday()
	country := normalizeCountry(in.Country)

	b := Breakdown{
		SlotType:         in.SlotType,
		Country:          country,
		Format:           in.Format,
		DurationDays:     in.DurationDays,
		BaseRate:         decimal.NewFromFloat(baseRates[in.SlotType]),
		SlotMultiplier:   slotMultipliers[in.SlotType],
		GeoMultiplier:    GeoMultiplier(country),
		TimeMultiplier:   TimeMultiplier(hour, weekday),
		FormatMultiplier: formatMultipliers[in.Format],
		DurationDiscount: DurationDiscount(in.DurationDays),
		DemandMultiplier: DemandMultiplier(in.SlotType, hour, weekday),
		Currency:         "USD",
	}

	undiscounted := b.BaseRate.
		Mul(decimal.NewFromFloat(b.SlotMultiplier)).
		Mul(decimal.NewFromFloat(b.GeoMultiplier)).
		Mul(decimal.NewFromFloat(b.TimeMultiplier)).
		Mul(decimal.NewFromFloat(b.FormatMultiplier)).
		Mul(decimal.NewFromFloat(b.DemandMultiplier))
	daily := undiscounted.Mul(decimal.NewFromFloat(b.DurationDiscount))
	days := decimal.NewFromInt(int64(in.DurationDays))

	subtotal := daily.Mul(days)
	b.DailyRate = daily.Round(2)
	b.Subtotal = subtotal.Round(2)
	b.Savings = undiscounted.Mul(days).Sub(subtotal).Round(2)

	b.AIBonus = decimal.Zero
	if in.AIGenerated {
		b.AIBonus = decimal.NewFromFloat(AIBonus)
	}
	b.Total = subtotal.Add(b.AIBonus).Round(2)
	return b, nil
}

// Quote prices the same placement for each of the standard durations.
func Quote(slotType domain.SlotType, format domain.AdFormat, country string, startAt time.Time, aiGenerated bool) ([]Breakdown, error) {
	out := make([]Breakdown, 0, len(QuoteDurations))
	for _, d := range QuoteDurations {
		b, err := Calculate(Input{
			SlotType:     slotType,
			DurationDays: d,
			Country:      country,
			StartAt:      startAt,
			Format:       format,
			AIGenerated:  aiGenerated,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func GeoMultiplier(country string) float64 {
	if m, ok := geoMultipliers[normalizeCountry(country)]; ok {
		return m
	}
	return DefaultGeoMultiplier
}

func TimeMultiplier(hour int, weekday time.Weekday) float64 {
	m := 1.0
	for _, band := range hourBands {
		if hour >= band.from && hour <= band.to {
			m = band.multiplier
			break
		}
	}
	if w, ok := weekdayMultipliers[weekday]; ok {
		m *= w
	}
	return m
}

func DurationDiscount(days int) float64 {
	for _, tier := range durationTiers {
		if days >= tier.minDays {
			return tier.discount
		}
	}
	return 1.0
}

func DemandMultiplier(slot domain.SlotType, hour int, weekday time.Weekday) float64 {
	levels, ok := demandMultipliers[slot]
	if !ok {
		return 1.0
	}
	return levels[demandFor(hour, weekday)]
}

// SlotTypes lists the known tiers, most expensive first.
func SlotTypes() []domain.SlotType {
	return []domain.SlotType{domain.SlotTop, domain.SlotMid, domain.SlotBottom}
}

// ValidFormat reports whether the format has a rate table entry.
func ValidFormat(f domain.AdFormat) bool {
	_, ok := formatMultipliers[f]
	return ok
}

func ValidSlotType(s domain.SlotType) bool {
	_, ok := baseRates[s]
	return ok
}

func demandFor(hour int, weekday time.Weekday) demandLevel {
	weekend := weekday == time.Saturday || weekday == time.Sunday
	switch {
	case hour >= 17 && hour <= 21:
		return demandPeak
	case weekend, hour >= 9 && hour <= 16:
		return demandHigh
	default:
		return demandNormal
	}
}

func normalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
