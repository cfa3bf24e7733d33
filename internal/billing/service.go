// Package billing ingests signed Polar webhooks and applies subscription
// changes to users and their billing records.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

// ErrNotConfigured is returned when no webhook secret is set.
var ErrNotConfigured = errors.New("webhook secret not configured")

// Result describes what one delivery did.
type Result struct {
	EventID   string
	EventType string
	Outcome   string
	UserID    uuid.UUID
}

type Service interface {
	Enabled() bool
	// Ingest verifies body against signature and applies the event it
	// carries. It returns apierr kinds: Unauthorized for a bad signature,
	// Validation for a malformed event, Internal for store failures.
	Ingest(ctx context.Context, body []byte, signature string) (*Result, error)
}

type service struct {
	repo   Repository
	parser *Parser
	secret string
	log    *slog.Logger
}

func NewService(repo Repository, parser *Parser, secret string, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{repo: repo, parser: parser, secret: secret, log: log}
}

var _ Service = (*service)(nil)

func (s *service) Enabled() bool { return s.secret != "" }

func (s *service) Ingest(ctx context.Context, body []byte, signature string) (*Result, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	// The MAC covers the raw bytes; nothing is parsed before it verifies.
	if !VerifySignature(body, signature, s.secret) {
		return nil, apierr.Unauthorized("invalid signature")
	}

	ev, err := s.parser.ParseEvent(body)
	if err != nil {
		return nil, err
	}
	var order *OrderCreated
	if ev.Type == EventOrderCreated {
		if order, err = s.parser.ParseOrderCreated(ev.Data); err != nil {
			return nil, err
		}
	}

	res := &Result{EventID: ev.ID, EventType: ev.Type}
	err = s.repo.InTx(ctx, func(tx Tx) error {
		outcome, userID, err := s.apply(ctx, tx, ev, order, body)
		res.Outcome, res.UserID = outcome, userID
		return err
	})
	if err != nil {
		return nil, apierr.Internal("webhook processing failed", fmt.Errorf("event %s: %w", ev.ID, err))
	}

	webhookEventsTotal.WithLabelValues(eventTypeLabel(ev.Type), res.Outcome).Inc()
	log := s.log.With("event_id", ev.ID, "event_type", ev.Type, "outcome", res.Outcome)
	switch res.Outcome {
	case models.OutcomeApplied:
		log.Info("billing event applied", "user_id", res.UserID, "tier", order.Tier)
	case models.OutcomeUnmatched:
		log.Warn("billing event matched no user", "customer_email", order.CustomerEmail)
	default:
		log.Info("billing event acknowledged")
	}
	return res, nil
}

func (s *service) apply(ctx context.Context, tx Tx, ev *Event, order *OrderCreated, body []byte) (string, uuid.UUID, error) {
	prior, err := tx.RecordEvent(ctx, &models.WebhookEvent{
		Provider:  models.WebhookProviderPolar,
		EventID:   ev.ID,
		EventType: ev.Type,
		Payload:   body,
	})
	if err != nil {
		return "", uuid.Nil, err
	}
	if prior != nil && prior.Settled() {
		return models.OutcomeDuplicate, uuid.Nil, nil
	}

	if order == nil {
		return models.OutcomeIgnored, uuid.Nil,
			tx.FinishEvent(ctx, models.WebhookProviderPolar, ev.ID, models.OutcomeIgnored)
	}

	userID, err := tx.ActivateUser(ctx, order.CustomerEmail, order.Tier)
	if errors.Is(err, repository.ErrNotFound) {
		// A prior unmatched row was committed with its alert job.
		if prior == nil {
			err = tx.EnqueueUnmatchedAlert(ctx, UnmatchedCustomerArgs{
				Provider:      models.WebhookProviderPolar,
				EventID:       ev.ID,
				CustomerEmail: order.CustomerEmail,
				ProductID:     order.ProductID,
				Tier:          order.Tier,
			})
			if err != nil {
				return "", uuid.Nil, err
			}
		}
		return models.OutcomeUnmatched, uuid.Nil,
			tx.FinishEvent(ctx, models.WebhookProviderPolar, ev.ID, models.OutcomeUnmatched)
	}
	if err != nil {
		return "", uuid.Nil, err
	}

	var orderID *string
	if ev.HasProviderID {
		orderID = &ev.ID
	}
	if err := tx.UpsertBilling(ctx, userID, orderID, order.Tier); err != nil {
		return "", uuid.Nil, err
	}
	return models.OutcomeApplied, userID,
		tx.FinishEvent(ctx, models.WebhookProviderPolar, ev.ID, models.OutcomeApplied)
}
