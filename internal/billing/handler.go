package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goclaw/backend/internal/apierr"
)

const maxWebhookBodyBytes = 1 << 20

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

type okResponse struct {
	OK bool `json:"ok"`
}

// PolarWebhook handles POST /api/webhooks/polar.
func (h *Handler) PolarWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		webhookRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		webhookDuration.Observe(time.Since(start).Seconds())
	}()

	if !h.svc.Enabled() {
		status = http.StatusServiceUnavailable
		apierr.WriteMessage(w, status, "webhook not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			apierr.WriteMessage(w, status, "payload too large")
			return
		}
		status = http.StatusBadRequest
		apierr.WriteMessage(w, status, "failed to read body")
		return
	}

	if _, err := h.svc.Ingest(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		status = apierr.Status(err)
		if status == http.StatusUnauthorized {
			h.log.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		}
		apierr.Write(w, h.log, err)
		return
	}
	apierr.WriteJSON(w, status, okResponse{OK: true})
}
