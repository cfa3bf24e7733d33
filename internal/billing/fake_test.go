package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

// fakeRepo is an in-memory Repository. InTx works on a copy of the state
// and keeps it only when fn succeeds, like a rolled-back transaction.
type fakeRepo struct {
	mu      sync.Mutex
	state   fakeState
	txCount int
	// failOn makes the named Tx method return errStore.
	failOn string
}

var errStore = errors.New("store unavailable")

type fakeState struct {
	users   map[string]models.User
	billing map[uuid.UUID]models.Billing
	events  map[string]models.WebhookEvent
	alerts  []UnmatchedCustomerArgs
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: fakeState{
		users:   make(map[string]models.User),
		billing: make(map[uuid.UUID]models.Billing),
		events:  make(map[string]models.WebhookEvent),
	}}
}

func (r *fakeRepo) addUser(email, tier string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := models.User{ID: uuid.New(), Email: email, Tier: tier, Active: true}
	r.state.users[email] = u
	return u.ID
}

func (r *fakeRepo) user(email string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.users[email]
}

func (r *fakeRepo) snapshot() fakeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		users:   make(map[string]models.User, len(s.users)),
		billing: make(map[uuid.UUID]models.Billing, len(s.billing)),
		events:  make(map[string]models.WebhookEvent, len(s.events)),
		alerts:  append([]UnmatchedCustomerArgs(nil), s.alerts...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.billing {
		c.billing[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

func (r *fakeRepo) InTx(_ context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCount++
	work := r.state.clone()
	if err := fn(&fakeTx{s: &work, failOn: r.failOn}); err != nil {
		return err
	}
	r.state = work
	return nil
}

type fakeTx struct {
	s      *fakeState
	failOn string
}

func eventKey(provider, id string) string { return provider + "/" + id }

func (t *fakeTx) fail(op string) error {
	if t.failOn == op {
		return errStore
	}
	return nil
}

func (t *fakeTx) RecordEvent(_ context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, error) {
	if err := t.fail("RecordEvent"); err != nil {
		return nil, err
	}
	key := eventKey(ev.Provider, ev.EventID)
	if prior, ok := t.s.events[key]; ok {
		prior.Attempts++
		t.s.events[key] = prior
		return &prior, nil
	}
	stored := *ev
	stored.ID = uuid.New()
	stored.Outcome = models.OutcomeReceived
	stored.Attempts = 1
	stored.CreatedAt = time.Now()
	t.s.events[key] = stored
	return nil, nil
}

func (t *fakeTx) ActivateUser(_ context.Context, email, tier string) (uuid.UUID, error) {
	if err := t.fail("ActivateUser"); err != nil {
		return uuid.Nil, err
	}
	u, ok := t.s.users[email]
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	u.Tier = tier
	u.Active = true
	t.s.users[email] = u
	return u.ID, nil
}

func (t *fakeTx) UpsertBilling(_ context.Context, userID uuid.UUID, orderID *string, tier string) error {
	if err := t.fail("UpsertBilling"); err != nil {
		return err
	}
	b, ok := t.s.billing[userID]
	if !ok {
		b = models.Billing{ID: uuid.New(), UserID: userID, PolarOrderID: orderID}
	}
	b.Tier = tier
	b.Status = models.BillingStatusActive
	t.s.billing[userID] = b
	return nil
}

func (t *fakeTx) FinishEvent(_ context.Context, provider, eventID, outcome string) error {
	if err := t.fail("FinishEvent"); err != nil {
		return err
	}
	key := eventKey(provider, eventID)
	ev := t.s.events[key]
	ev.Outcome = outcome
	now := time.Now()
	ev.ProcessedAt = &now
	t.s.events[key] = ev
	return nil
}

func (t *fakeTx) EnqueueUnmatchedAlert(_ context.Context, args UnmatchedCustomerArgs) error {
	if err := t.fail("EnqueueUnmatchedAlert"); err != nil {
		return err
	}
	t.s.alerts = append(t.s.alerts, args)
	return nil
}
