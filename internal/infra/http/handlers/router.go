package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/zag-leads/internal/infra/http/middleware"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

type RouterConfig struct {
	Webhooks      *WebhookHandler
	Leads         *LeadHandler
	Health        *HealthHandler
	Log           *logger.Logger
	CORSOrigins   []string
	WebhookSecret string
	AdminToken    string
	// TrustProxy lets chi's RealIP rewrite RemoteAddr from forwarding headers.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
	// RateLimiter applies to webhook routes only. Nil disables it.
	RateLimiter *middleware.IPRateLimiter
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.SignatureHeader},
		MaxAge:         300,
	}))

	r.Get("/health", cfg.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/unsubscribe/{id}", cfg.Leads.UnsubscribePage)
	r.Post("/unsubscribe/{id}", cfg.Leads.UnsubscribeLink)

	r.Route("/webhook", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.RateLimit)
		}
		r.Use(middleware.WebhookSignature(cfg.WebhookSecret))

		r.Post("/lead", cfg.Webhooks.Lead)
		r.Post("/generic", cfg.Webhooks.Generic)
		r.Post("/webflow", cfg.Webhooks.Webflow)
		r.Post("/typeform", cfg.Webhooks.Typeform)
		r.Post("/tally", cfg.Webhooks.Tally)
		r.Post("/engagement", cfg.Webhooks.Engagement)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AdminToken(cfg.AdminToken))

		r.Get("/leads", cfg.Leads.List)
		r.Post("/leads", cfg.Leads.Create)
		r.Get("/leads/{id}", cfg.Leads.Get)
		r.Get("/leads/{id}/score", cfg.Leads.Score)
		r.Get("/leads/{id}/preview", cfg.Leads.Preview)
		r.Post("/leads/{id}/unsubscribe", cfg.Leads.Unsubscribe)
		r.Post("/leads/{id}/pause", cfg.Leads.Pause)
		r.Post("/leads/{id}/resume", cfg.Leads.Resume)
		r.Get("/pipeline", cfg.Leads.Pipeline)
		r.Post("/outreach/run", cfg.Leads.RunOutreach)
		r.Get("/outreach/preview/{id}", cfg.Leads.Preview)
	})

	return r
}
