package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/goclaw/backend/internal/agents"
	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/config"
	"github.com/goclaw/backend/internal/dashboard"
	"github.com/goclaw/backend/internal/middleware"
	"github.com/goclaw/backend/internal/router"
)

// newAPI wires services and handlers for the /api routes.
func newAPI(cfg *config.Config, b *backend) (http.Handler, error) {
	log := slog.Default()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(b.users, tokens, log)

	parser, err := billing.NewParser()
	if err != nil {
		return nil, err
	}
	billingSvc := billing.NewService(b.webhooks, parser, cfg.PolarWebhookSecret, log)

	opts := router.Options{Verifier: authSvc}
	if cfg.RequireActiveUser {
		opts.Users = b.users
	}
	return router.New(router.Handlers{
		Auth:      auth.NewHandler(authSvc, log),
		Agents:    agents.NewHandler(agents.NewService(b.agents), log),
		Dashboard: dashboard.NewHandler(b.users, b.billing, b.agents, log),
		Billing:   billing.NewHandler(billingSvc, log),
	}, opts), nil
}

// newMux mounts the API next to the unauthenticated ops endpoints and puts
// CORS in front of everything.
func newMux(api http.Handler, ping func(context.Context) error, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			slog.Warn("health check failed", "error", err)
			apierr.WriteMessage(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}).Handler(middleware.JSONErrors(mux))
}
