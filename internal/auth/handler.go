package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goclaw/backend/internal/apierr"
)

var signupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "goclaw",
	Subsystem: "auth",
	Name:      "signups_total",
	Help:      "Signup requests by result (created, existing, rejected, failed).",
}, []string{"result"})

type SignupResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

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

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		signupsTotal.WithLabelValues("rejected").Inc()
		apierr.WriteMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	res, err := h.svc.Issue(r.Context(), req)
	if err != nil {
		if apierr.KindOf(err) == apierr.KindInternal {
			signupsTotal.WithLabelValues("failed").Inc()
		} else {
			signupsTotal.WithLabelValues("rejected").Inc()
		}
		apierr.Write(w, h.log, err)
		return
	}
	status := http.StatusOK
	result := "existing"
	if res.Created {
		status = http.StatusCreated
		result = "created"
	}
	signupsTotal.WithLabelValues(result).Inc()
	apierr.WriteJSON(w, status, SignupResponse{Token: res.Token, UserID: res.UserID})
}
