// Package memstore keeps users, agents, billing rows and webhook events in
// process memory. It backs `serve --store=memory` and tests; state is lost
// on exit.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

// AlertFunc receives unmatched-customer alerts after the transaction that
// raised them commits.
type AlertFunc func(ctx context.Context, args billing.UnmatchedCustomerArgs) error

type Store struct {
	mu    sync.Mutex
	data  state
	now   func() time.Time
	alert AlertFunc
}

type state struct {
	users   map[uuid.UUID]models.User
	agents  map[uuid.UUID]models.Agent
	billing map[uuid.UUID]models.Billing
	events  map[string]models.WebhookEvent
}

func New() *Store {
	return &Store{
		data: state{
			users:   make(map[uuid.UUID]models.User),
			agents:  make(map[uuid.UUID]models.Agent),
			billing: make(map[uuid.UUID]models.Billing),
			events:  make(map[string]models.WebhookEvent),
		},
		now: time.Now,
	}
}

// OnAlert sets the function that handles unmatched-customer alerts.
func (s *Store) OnAlert(fn AlertFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = fn
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Users() *Users       { return &Users{s: s} }
func (s *Store) Agents() *Agents     { return &Agents{s: s} }
func (s *Store) Billing() *Billing   { return &Billing{s: s} }
func (s *Store) Webhooks() *Webhooks { return &Webhooks{s: s} }

// tick returns a timestamp strictly after the previous one so ordering by
// creation time is stable.
func (s *Store) tick(prev *time.Time) time.Time {
	t := s.now()
	if prev != nil && !t.After(*prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.data.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
		if user.PolarCustomerID != nil && existing.PolarCustomerID != nil &&
			*existing.PolarCustomerID == *user.PolarCustomerID {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = u.s.now()
	user.UpdatedAt = user.CreatedAt
	u.s.data.users[user.ID] = *user
	return nil
}

func (u *Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.data.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// SetActive flips a user's active flag.
func (u *Users) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.data.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Active = active
	user.UpdatedAt = u.s.now()
	u.s.data.users[id] = user
	return nil
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

type Agents struct{ s *Store }

func (a *Agents) Create(_ context.Context, ag *models.Agent) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.data.users[ag.UserID]; !ok {
		return errForeignKey
	}
	ag.ID = uuid.New()
	ag.CreatedAt = a.s.tick(a.latestAgent())
	ag.UpdatedAt = ag.CreatedAt
	a.s.data.agents[ag.ID] = *ag
	return nil
}

func (a *Agents) latestAgent() *time.Time {
	var latest *time.Time
	for _, ag := range a.s.data.agents {
		if latest == nil || ag.CreatedAt.After(*latest) {
			t := ag.CreatedAt
			latest = &t
		}
	}
	return latest
}

func (a *Agents) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.Agent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	list := []*models.Agent{}
	for _, ag := range a.s.data.agents {
		if ag.UserID == userID {
			ag := ag
			list = append(list, &ag)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (a *Agents) GetForUser(_ context.Context, userID, id uuid.UUID) (*models.Agent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	ag, ok := a.s.data.agents[id]
	if !ok || ag.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &ag, nil
}

func (a *Agents) UpdateStatusForUser(_ context.Context, userID, id uuid.UUID, status string) (*models.Agent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	ag, ok := a.s.data.agents[id]
	if !ok || ag.UserID != userID {
		return nil, repository.ErrNotFound
	}
	ag.Status = status
	ag.UpdatedAt = a.s.now()
	a.s.data.agents[id] = ag
	return &ag, nil
}

func (a *Agents) DeleteForUser(_ context.Context, userID, id uuid.UUID) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	ag, ok := a.s.data.agents[id]
	if !ok || ag.UserID != userID {
		return repository.ErrNotFound
	}
	delete(a.s.data.agents, id)
	return nil
}

func (a *Agents) CountByStatus(_ context.Context, userID uuid.UUID) (map[string]int, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	counts := make(map[string]int)
	for _, ag := range a.s.data.agents {
		if ag.UserID == userID {
			counts[ag.Status]++
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Billing
// ---------------------------------------------------------------------------

type Billing struct{ s *Store }

func (b *Billing) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Billing, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	row, ok := b.s.data.billing[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

// Count returns the number of billing rows.
func (b *Billing) Count() int {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return len(b.s.data.billing)
}
