package agents

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/middleware"
	"github.com/goclaw/backend/internal/models"
)

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// authUserID returns the id of the session set by middleware.SessionAuth,
// or "" when there is none; the service rejects "".
func authUserID(r *http.Request) string {
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		return sess.UserID
	}
	return ""
}

// GET /api/goclaw/{userId}/agents
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), authUserID(r), r.PathValue("userId"))
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string][]*models.Agent{"agents": list})
}

// POST /api/goclaw/{userId}/agents
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	authID, path := authUserID(r), r.PathValue("userId")
	// A foreign path is rejected before the body is looked at.
	if err := auth.CheckTenant(authID, path); err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apierr.WriteMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ag, err := h.svc.Create(r.Context(), authID, path, in)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	h.log.Info("agent created", "user_id", ag.UserID, "agent_id", ag.ID)
	apierr.WriteJSON(w, http.StatusCreated, map[string]*models.Agent{"agent": ag})
}

// GET /api/goclaw/{userId}/agents/{agentId}
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	ag, err := h.svc.Get(r.Context(), authUserID(r), r.PathValue("userId"), r.PathValue("agentId"))
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]*models.Agent{"agent": ag})
}

// PATCH /api/goclaw/{userId}/agents/{agentId}
func (h *Handler) UpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	if err := auth.CheckTenant(authUserID(r), r.PathValue("userId")); err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	var in StatusInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apierr.WriteMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ag, err := h.svc.UpdateStatus(r.Context(), authUserID(r), r.PathValue("userId"), r.PathValue("agentId"), in)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]*models.Agent{"agent": ag})
}

// DELETE /api/goclaw/{userId}/agents/{agentId}
func (h *Handler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), authUserID(r), r.PathValue("userId"), r.PathValue("agentId")); err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	h.log.Info("agent deleted", "user_id", r.PathValue("userId"), "agent_id", r.PathValue("agentId"))
	w.WriteHeader(http.StatusNoContent)
}
