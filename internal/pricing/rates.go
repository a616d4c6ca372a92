package pricing

import (
	"time"

	"github.com/set-night/adbazaar/internal/domain"
)

// Base daily rate (USD) per slot tier.
var baseRates = map[domain.SlotType]float64{
	domain.SlotTop:    120,
	domain.SlotMid:    75,
	domain.SlotBottom: 40,
}

// Placement premium on top of the base rate.
var slotMultipliers = map[domain.SlotType]float64{
	domain.SlotTop:    1.5,
	domain.SlotMid:    1.2,
	domain.SlotBottom: 1.0,
}

// Keyed by ISO 3166-1 alpha-2. Countries not listed use DefaultGeoMultiplier.
var geoMultipliers = map[string]float64{
	"US": 1.5,
	"CA": 1.3,
	"GB": 1.4,
	"DE": 1.3,
	"FR": 1.25,
	"NL": 1.2,
	"SE": 1.2,
	"CH": 1.45,
	"AU": 1.3,
	"JP": 1.35,
	"SG": 1.3,
	"AE": 1.25,
	"MX": 0.8,
	"BR": 0.75,
	"ID": 0.65,
	"IN": 0.6,
	"PH": 0.6,
	"KE": 0.55,
	"NG": 0.5,
}

const DefaultGeoMultiplier = 1.0

type hourBand struct {
	from, to   int // inclusive
	multiplier float64
}

var hourBands = []hourBand{
	{0, 5, 0.8},
	{6, 8, 1.0},
	{9, 16, 1.1},
	{17, 21, 1.3},
	{22, 23, 0.9},
}

var weekdayMultipliers = map[time.Weekday]float64{
	time.Friday:   1.05,
	time.Saturday: 1.1,
	time.Sunday:   1.1,
}

var formatMultipliers = map[domain.AdFormat]float64{
	domain.FormatImage:    1.0,
	domain.FormatVideo:    1.4,
	domain.FormatCarousel: 1.2,
	domain.FormatText:     0.8,
	domain.FormatHTML5:    1.25,
}

// durationTiers must stay sorted by minDays descending.
var durationTiers = []struct {
	minDays  int
	discount float64
}{
	{90, 0.70},
	{30, 0.80},
	{14, 0.88},
	{7, 0.93},
	{1, 1.00},
}

type demandLevel int

const (
	demandNormal demandLevel = iota
	demandHigh
	demandPeak
)

var demandMultipliers = map[domain.SlotType]map[demandLevel]float64{
	domain.SlotTop:    {demandNormal: 1.0, demandHigh: 1.1, demandPeak: 1.25},
	domain.SlotMid:    {demandNormal: 1.0, demandHigh: 1.05, demandPeak: 1.15},
	domain.SlotBottom: {demandNormal: 1.0, demandHigh: 1.0, demandPeak: 1.05},
}

// AIBonus is the flat fee added once for AI-generated creatives.
const AIBonus = 15.0

// QuoteDurations are the standard campaign lengths offered in a quote.
var QuoteDurations = []int{1, 7, 14, 30, 90}
