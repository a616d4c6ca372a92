package handler

import (
	"net/http"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/middleware"
	"github.com/set-night/adbazaar/internal/service"
)

// Handler holds all dependencies needed by the HTTP handlers.
type Handler struct {
	cfg             *config.Config
	authService     *service.AuthService
	adService       *service.AdService
	campaignService *service.CampaignService
	paymentService  *service.PaymentService
	referralService *service.ReferralService
	adCopyService   *service.AdCopyService
	dealService     *service.DealService
	surpriseService *service.SurpriseService
	notifier        service.Notifier
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg             *config.Config
	AuthService     *service.AuthService
	AdService       *service.AdService
	CampaignService *service.CampaignService
	PaymentService  *service.PaymentService
	ReferralService *service.ReferralService
	AdCopyService   *service.AdCopyService
	DealService     *service.DealService
	SurpriseService *service.SurpriseService
	Notifier        service.Notifier
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	return &Handler{
		cfg:             deps.Cfg,
		authService:     deps.AuthService,
		adService:       deps.AdService,
		campaignService: deps.CampaignService,
		paymentService:  deps.PaymentService,
		referralService: deps.ReferralService,
		adCopyService:   deps.AdCopyService,
		dealService:     deps.DealService,
		surpriseService: deps.SurpriseService,
		notifier:        notifier,
	}
}

// Routes builds the full HTTP router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Recover)

	r.Get("/healthz", h.Health)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	authenticated := middleware.Authenticate(h.authService, h.authService)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimitAuth()).Post("/register", h.Register)
			r.With(middleware.RateLimitAuth()).Post("/login", h.Login)
			r.With(authenticated).Get("/me", h.Me)
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Post("/calculate", h.CalculatePrice)
			r.Post("/quote", h.QuotePrice)
		})

		// Stripe calls this without a bearer token; the signature authenticates it.
		r.Post("/payments/webhook", h.StripeWebhook)
		r.Get("/referrals/validate/{code}", h.ValidateReferralCode)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Route("/ads", func(r chi.Router) {
				r.Get("/", h.ListAds)
				r.Post("/", h.CreateAd)
				r.Get("/{id}", h.GetAd)
				r.Put("/{id}", h.UpdateAd)
				r.Delete("/{id}", h.DeleteAd)
			})

			r.Route("/campaigns", func(r chi.Router) {
				r.Get("/", h.ListCampaigns)
				r.Post("/", h.CreateCampaign)
				r.Get("/{id}", h.GetCampaign)
				r.Put("/{id}", h.UpdateCampaign)
				r.Delete("/{id}", h.DeleteCampaign)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", h.ListPayments)
				r.Post("/checkout", h.Checkout)
				r.Get("/verify/{sessionID}", h.VerifySession)
				r.Post("/{id}/refund", h.RefundPayment)
			})

			r.Route("/referrals", func(r chi.Router) {
				r.Get("/code", h.MyReferralCode)
				r.Get("/codes", h.ListReferralCodes)
				r.Post("/codes", h.CreateReferralCode)
				r.Post("/apply", h.ApplyReferralCode)
				r.Get("/rewards", h.ListRewards)
				r.Post("/rewards/{id}/redeem", h.RedeemReward)
				r.Get("/stats", h.ReferralStats)
			})

			r.Route("/ai", func(r chi.Router) {
				r.Use(middleware.RateLimitAI())
				r.Post("/ad-copy", h.GenerateAdCopy)
				r.Post("/deals", h.GenerateDeals)
				r.Post("/surprise", h.GenerateSurprise)
			})
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
