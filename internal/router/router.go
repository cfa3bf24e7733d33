package router

import (
	"net/http"

	"github.com/goclaw/backend/internal/agents"
	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/dashboard"
	"github.com/goclaw/backend/internal/middleware"
)

type Handlers struct {
	Auth      *auth.Handler
	Agents    *agents.Handler
	Dashboard *dashboard.Handler
	Billing   *billing.Handler
}

// Options controls the middleware in front of tenant routes.
type Options struct {
	Verifier middleware.Verifier
	// Users enables the liveness check when set.
	Users middleware.UserLookup
}

// New returns an http.Handler that serves the API under /api.
func New(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", h.Auth.Signup)
	mux.HandleFunc("POST /api/webhooks/polar", h.Billing.PolarWebhook)

	// Tenant routes: SessionAuth -> (ActiveUser) -> handler
	tenant := middleware.SessionAuth(opts.Verifier)
	if opts.Users != nil {
		session, alive := tenant, middleware.ActiveUser(opts.Users, nil)
		tenant = func(next http.Handler) http.Handler { return session(alive(next)) }
	}
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, tenant(fn))
	}

	base := "/api/goclaw/{userId}"
	handle("GET "+base+"/agents", h.Agents.ListAgents)
	handle("POST "+base+"/agents", h.Agents.CreateAgent)
	handle("GET "+base+"/agents/{agentId}", h.Agents.GetAgent)
	handle("PATCH "+base+"/agents/{agentId}", h.Agents.UpdateAgentStatus)
	handle("DELETE "+base+"/agents/{agentId}", h.Agents.DeleteAgent)
	handle("GET "+base+"/summary", h.Dashboard.GetSummary)

	return middleware.JSONErrors(mux)
}
