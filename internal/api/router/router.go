// Package router assembles the HTTP routes for the intake service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrenchline/wrenchline/internal/http/handlers"
	httpmiddleware "github.com/wrenchline/wrenchline/internal/http/middleware"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	VoiceTurn      *handlers.VoiceTurnHandler
	SMSReply       *handlers.SMSReplyHandler
	AdminDashboard *handlers.AdminDashboardHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRatePerSecond throttles the public webhook endpoints per IP.
	// Zero disables rate limiting.
	WebhookRatePerSecond float64
	WebhookBurst         int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, provider webhooks.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		public.Route("/webhooks", func(wh chi.Router) {
			if cfg.WebhookRatePerSecond > 0 {
				wh.Use(httpmiddleware.RateLimit(cfg.WebhookRatePerSecond, cfg.WebhookBurst))
			}
			if cfg.VoiceTurn != nil {
				wh.Post("/voice/turn", cfg.VoiceTurn.HandleTurn)
			}
			if cfg.SMSReply != nil {
				wh.Post("/sms/inbound", cfg.SMSReply.HandleInbound)
			}
		})
	})

	// Admin routes, JWT protected.
	if cfg.AdminDashboard != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/tenants/{tenantID}", func(t chi.Router) {
				t.Get("/summary", cfg.AdminDashboard.GetSummary)
				t.Get("/bookings/daily", cfg.AdminDashboard.GetBookedPerDay)
				t.Get("/calls", cfg.AdminDashboard.ListCalls)
				t.Get("/config", cfg.AdminDashboard.GetConfig)
				t.Put("/config", cfg.AdminDashboard.PutConfig)
			})
		})
	}

	return r
}
