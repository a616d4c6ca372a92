package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	Addr        string `env:"ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	PublicURL   string `env:"PUBLIC_URL" envDefault:"http://localhost:5173"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	BcryptCost  int    `env:"BCRYPT_COST" envDefault:"12"`

	// Payment: Stripe
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency            string `env:"CURRENCY" envDefault:"usd"`

	// AI
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMBaseURL  string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMAPIKey   string `env:"LLM_API_KEY"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	ImageModel  string `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
	GeminiKey   string `env:"GEMINI_API_KEY"`
	GeminiModel string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// Referral program
	ReferralCreditReward    float64 `env:"REFERRAL_CREDIT_REWARD" envDefault:"25"`
	ReferralWelcomeDiscount float64 `env:"REFERRAL_WELCOME_DISCOUNT" envDefault:"10"`

	// Admin
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	// Telegram ops log
	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN"`
	LogTelegramChatID int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int    `env:"LOG_TOPIC_ERROR"`
	LogTopicPayment   int    `env:"LOG_TOPIC_PAYMENT"`
	LogTopicReferral  int    `env:"LOG_TOPIC_REFERRAL"`
	LogTopicSignup    int    `env:"LOG_TOPIC_SIGNUP"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}
