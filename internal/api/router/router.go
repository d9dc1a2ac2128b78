package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-intake/internal/dashboard"
	httpmiddleware "github.com/wolfman30/clinic-intake/internal/http/middleware"
	"github.com/wolfman30/clinic-intake/internal/messaging"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	MessagingHandler   *messaging.Handler
	DashboardHandler   *dashboard.Handler
	PaymentCallback    http.Handler
	MetricsHandler     http.Handler
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// InboundLimiter throttles the provider webhook per sender. Nil
	// disables throttling.
	InboundLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.MessagingHandler == nil {
		panic("router: messaging handler required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.MessagingHandler.HealthCheck)
		public.Route("/webhooks/twilio", func(r chi.Router) {
			if cfg.InboundLimiter != nil {
				r.Use(httpmiddleware.RateLimit(cfg.InboundLimiter, httpmiddleware.BySender, cfg.Logger))
			}
			r.Post("/messages", cfg.MessagingHandler.TwilioWebhook)
		})
		if cfg.PaymentCallback != nil {
			public.Method(http.MethodPost, "/payments/callback", cfg.PaymentCallback)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operator routes (dashboard, operator messaging, local inbound)
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
		api.Post("/messages/inbound", cfg.MessagingHandler.InboundJSON)
		api.Post("/send-message", cfg.MessagingHandler.SendMessage)
		if cfg.DashboardHandler != nil {
			cfg.DashboardHandler.Register(api)
		}
	})

	return r
}
