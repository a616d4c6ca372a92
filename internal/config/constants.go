package config

import "time"

const (
	// HTTP server
	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 15 * time.Second
	MaxBodyBytes      = 1 << 20
	MaxWebhookBytes   = 65536

	// Auth
	TokenTTL       = 72 * time.Hour
	MinPasswordLen = 8
	MaxNameLen     = 100

	// AI request timeout
	RequestTimeout = 60 * time.Second

	// Generated content cache duration
	GeneratorCacheTTL = 30 * time.Minute

	// Rate limits (per minute)
	RateLimitAI   = 10
	RateLimitAuth = 20

	// Referral codes
	ReferralCodeLength   = 8
	ReferralCodeAttempts = 10

	// Campaign bounds
	MinCampaignDays = 1
	MaxCampaignDays = 365

	// Deals
	DefaultDealCount = 3
	MaxDealCount     = 10

	// Ad copy
	MaxHeadlines = 5

	// Landing page scrape
	LandingFetchTimeout = 10 * time.Second
	LandingMaxBytes     = 2 << 20
)
