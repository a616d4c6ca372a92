package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/set-night/adbazaar"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/handler"
	"github.com/set-night/adbazaar/internal/repository"
	"github.com/set-night/adbazaar/internal/service"
	"github.com/set-night/adbazaar/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage and migrations
	migrationsFS, err := fs.Sub(adbazaar.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	store, closeStore, err := repository.Open(ctx, cfg.DatabaseURL, migrationsFS)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Generator cache
	var cache service.Cache = service.NewMemoryCache(config.GeneratorCacheTTL)
	if cfg.RedisURL != "" {
		rdb, err := service.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, using in-memory cache", "error", err)
		} else {
			defer rdb.Close()
			cache = service.NewRedisCache(rdb, config.GeneratorCacheTTL)
		}
	}

	generator, err := service.NewGenerator(ctx, cfg)
	if err != nil {
		slog.Warn("generator unavailable, serving fallback content", "error", err)
	} else if generator == nil {
		slog.Info("no LLM credentials configured, generators use fallback content")
	}

	// Ops notifications
	var notifier service.Notifier = service.NopNotifier{}
	if cfg.TelegramBotToken != "" {
		tg, err := telegram.New(cfg)
		if err != nil {
			slog.Error("failed to create telegram notifier", "error", err)
			os.Exit(1)
		}
		notifier = tg
	}

	if cfg.StripeSecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY not set, paid checkouts will fail")
	}
	processor := service.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Initialize services
	referralService := service.NewReferralService(store, notifier, cfg)
	authService := service.NewAuthService(store, referralService, notifier, cfg)
	adService := service.NewAdService(store)
	campaignService := service.NewCampaignService(store, cfg)
	paymentService := service.NewPaymentService(store, processor, referralService, notifier, cfg)
	adCopyService := service.NewAdCopyService(generator, service.NewLandingFetcher())
	dealService := service.NewDealService(generator, cache)
	surpriseService := service.NewSurpriseService(generator)

	h := handler.New(handler.Deps{
		Cfg:             cfg,
		AuthService:     authService,
		AdService:       adService,
		CampaignService: campaignService,
		PaymentService:  paymentService,
		ReferralService: referralService,
		AdCopyService:   adCopyService,
		DealService:     dealService,
		SurpriseService: surpriseService,
		Notifier:        notifier,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	slog.Info("server stopped gracefully")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
