// Package dashboard serves the per-tenant summary: who the caller is, what
// they pay for and how many agents they run.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/middleware"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type BillingReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Billing, error)
}

type AgentCounter interface {
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[string]int, error)
}

type Handler struct {
	users   UserReader
	billing BillingReader
	agents  AgentCounter
	log     *slog.Logger
}

func NewHandler(users UserReader, billing BillingReader, agents AgentCounter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{users: users, billing: billing, agents: agents, log: log}
}

type AgentCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Summary is null-billing until the first paid order lands.
type Summary struct {
	User    *models.User    `json:"user"`
	Billing *models.Billing `json:"billing"`
	Agents  AgentCounts     `json:"agents"`
}

// GET /api/goclaw/{userId}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	var authID string
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		authID = sess.UserID
	}
	path := r.PathValue("userId")
	if err := auth.CheckTenant(authID, path); err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	userID, err := uuid.Parse(path)
	if err != nil {
		apierr.Write(w, h.log, apierr.Unauthorized("unauthorized"))
		return
	}

	sum, err := h.summary(r.Context(), userID)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	user, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierr.Unauthorized("unauthorized")
	}
	if err != nil {
		return nil, apierr.Internal("failed to load summary", fmt.Errorf("get user: %w", err))
	}

	b, err := h.billing.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b = nil
	case err != nil:
		return nil, apierr.Internal("failed to load summary", fmt.Errorf("get billing: %w", err))
	}

	counts, err := h.agents.CountByStatus(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("failed to load summary", fmt.Errorf("count agents: %w", err))
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &Summary{User: user, Billing: b, Agents: AgentCounts{Total: total, ByStatus: counts}}, nil
}
