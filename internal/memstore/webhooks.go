package memstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

var errForeignKey = errors.New("referenced user does not exist")

// Webhooks implements billing.Repository. A transaction works on a copy of
// the state that replaces it only on success.
type Webhooks struct{ s *Store }

var _ billing.Repository = (*Webhooks)(nil)

func (w *Webhooks) InTx(ctx context.Context, fn func(tx billing.Tx) error) error {
	w.s.mu.Lock()
	tx := &memTx{s: w.s, data: w.s.data.clone()}
	err := fn(tx)
	if err == nil {
		w.s.data = tx.data
	}
	alert := w.s.alert
	w.s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, args := range tx.alerts {
		if alert == nil {
			continue
		}
		if err := alert(ctx, args); err != nil {
			return fmt.Errorf("raise alert for %s: %w", args.EventID, err)
		}
	}
	return nil
}

// MarkAlerted implements billing.AlertStore.
func (w *Webhooks) MarkAlerted(_ context.Context, provider, eventID string) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	key := eventKey(provider, eventID)
	ev, ok := w.s.data.events[key]
	if !ok {
		return repository.ErrNotFound
	}
	now := w.s.now()
	ev.AlertedAt = &now
	w.s.data.events[key] = ev
	return nil
}

// Event returns a stored webhook event.
func (w *Webhooks) Event(provider, eventID string) (models.WebhookEvent, bool) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	ev, ok := w.s.data.events[eventKey(provider, eventID)]
	return ev, ok
}

func eventKey(provider, eventID string) string { return provider + "/" + eventID }

func (d state) clone() state {
	c := state{
		users:   make(map[uuid.UUID]models.User, len(d.users)),
		agents:  make(map[uuid.UUID]models.Agent, len(d.agents)),
		billing: make(map[uuid.UUID]models.Billing, len(d.billing)),
		events:  make(map[string]models.WebhookEvent, len(d.events)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.agents {
		c.agents[k] = v
	}
	for k, v := range d.billing {
		c.billing[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	return c
}

type memTx struct {
	s      *Store
	data   state
	alerts []billing.UnmatchedCustomerArgs
}

func (t *memTx) RecordEvent(_ context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, error) {
	key := eventKey(ev.Provider, ev.EventID)
	if prior, ok := t.data.events[key]; ok {
		prior.Attempts++
		t.data.events[key] = prior
		return &prior, nil
	}
	ev.ID = uuid.New()
	ev.Outcome = models.OutcomeReceived
	ev.Attempts = 1
	ev.CreatedAt = t.s.now()
	t.data.events[key] = *ev
	return nil, nil
}

func (t *memTx) ActivateUser(_ context.Context, email, tier string) (uuid.UUID, error) {
	for id, u := range t.data.users {
		if u.Email == email {
			u.Tier = tier
			u.Active = true
			u.UpdatedAt = t.s.now()
			t.data.users[id] = u
			return id, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (t *memTx) UpsertBilling(_ context.Context, userID uuid.UUID, orderID *string, tier string) error {
	now := t.s.now()
	b, ok := t.data.billing[userID]
	if !ok {
		if orderID != nil {
			for _, other := range t.data.billing {
				if other.PolarOrderID != nil && *other.PolarOrderID == *orderID {
					return repository.ErrDuplicate
				}
			}
		}
		b = models.Billing{ID: uuid.New(), UserID: userID, PolarOrderID: orderID, CreatedAt: now}
	}
	b.Tier = tier
	b.Status = models.BillingStatusActive
	b.UpdatedAt = now
	t.data.billing[userID] = b
	return nil
}

func (t *memTx) FinishEvent(_ context.Context, provider, eventID, outcome string) error {
	key := eventKey(provider, eventID)
	ev, ok := t.data.events[key]
	if !ok {
		return repository.ErrNotFound
	}
	now := t.s.now()
	ev.Outcome = outcome
	ev.ProcessedAt = &now
	t.data.events[key] = ev
	return nil
}

func (t *memTx) EnqueueUnmatchedAlert(_ context.Context, args billing.UnmatchedCustomerArgs) error {
	t.alerts = append(t.alerts, args)
	return nil
}
