package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var eventColumns = []string{"id", "event_type", "outcome", "attempts", "alerted_at", "created_at", "processed_at"}

// Tx is the set of writes one webhook delivery performs. All of them
// commit or roll back together.
type Tx interface {
	// RecordEvent stores ev. If the event was seen before it returns the
	// stored row with its attempt count bumped, otherwise nil.
	RecordEvent(ctx context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, error)
	// ActivateUser sets tier and active=true on the user with email and
	// returns its id, or repository.ErrNotFound.
	ActivateUser(ctx context.Context, email, tier string) (uuid.UUID, error)
	// UpsertBilling creates the user's billing row or overwrites its tier
	// and status.
	UpsertBilling(ctx context.Context, userID uuid.UUID, orderID *string, tier string) error
	FinishEvent(ctx context.Context, provider, eventID, outcome string) error
	EnqueueUnmatchedAlert(ctx context.Context, args UnmatchedCustomerArgs) error
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// InsertAlertTxFunc inserts an alert job inside the caller's transaction.
type InsertAlertTxFunc func(ctx context.Context, tx pgx.Tx, args UnmatchedCustomerArgs) error

// PgRepository is the PostgreSQL Repository.
type PgRepository struct {
	pool        *pgxpool.Pool
	insertAlert InsertAlertTxFunc
}

func NewPgRepository(pool *pgxpool.Pool, insertAlert InsertAlertTxFunc) *PgRepository {
	return &PgRepository{pool: pool, insertAlert: insertAlert}
}

var _ Repository = (*PgRepository)(nil)

func (r *PgRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{tx: tx, insertAlert: r.insertAlert}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MarkAlerted stamps alerted_at on an event once its alert has been raised.
func (r *PgRepository) MarkAlerted(ctx context.Context, provider, eventID string) error {
	query, args, err := markAlerted(provider, eventID).ToSql()
	if err != nil {
		return fmt.Errorf("build mark alerted: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, args...)
	return err
}

type pgTx struct {
	tx          pgx.Tx
	insertAlert InsertAlertTxFunc
}

func (t *pgTx) RecordEvent(ctx context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, error) {
	query, args, err := insertEvent(ev).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert webhook event: %w", err)
	}
	err = t.tx.QueryRow(ctx, query, args...).Scan(&ev.ID, &ev.Outcome, &ev.Attempts, &ev.CreatedAt)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert webhook event: %w", err)
	}

	// Already recorded. The UPDATE row lock serializes concurrent
	// deliveries of the same event.
	query, args, err = bumpAttempts(ev.Provider, ev.EventID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bump attempts: %w", err)
	}
	prior := models.WebhookEvent{Provider: ev.Provider, EventID: ev.EventID}
	err = t.tx.QueryRow(ctx, query, args...).Scan(&prior.ID, &prior.EventType, &prior.Outcome, &prior.Attempts,
		&prior.AlertedAt, &prior.CreatedAt, &prior.ProcessedAt)
	if err != nil {
		return nil, fmt.Errorf("load webhook event: %w", err)
	}
	return &prior, nil
}

func (t *pgTx) ActivateUser(ctx context.Context, email, tier string) (uuid.UUID, error) {
	query, args, err := activateUser(email, tier).ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build update user: %w", err)
	}
	var id uuid.UUID
	err = t.tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, repository.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("update user: %w", err)
	}
	return id, nil
}

func (t *pgTx) UpsertBilling(ctx context.Context, userID uuid.UUID, orderID *string, tier string) error {
	query, args, err := upsertBilling(userID, orderID, tier).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert billing: %w", err)
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert billing: %w", err)
	}
	return nil
}

func (t *pgTx) FinishEvent(ctx context.Context, provider, eventID, outcome string) error {
	query, args, err := finishEvent(provider, eventID, outcome).ToSql()
	if err != nil {
		return fmt.Errorf("build finish webhook event: %w", err)
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finish webhook event: %w", err)
	}
	return nil
}

func (t *pgTx) EnqueueUnmatchedAlert(ctx context.Context, args UnmatchedCustomerArgs) error {
	if t.insertAlert == nil {
		return nil
	}
	if err := t.insertAlert(ctx, t.tx, args); err != nil {
		return fmt.Errorf("enqueue unmatched alert: %w", err)
	}
	return nil
}

func byEvent(provider, eventID string) sq.Eq {
	return sq.Eq{"provider": provider, "event_id": eventID}
}

// insertEvent returns no row when the event was already recorded.
func insertEvent(ev *models.WebhookEvent) sq.InsertBuilder {
	return psql.Insert("webhook_events").
		Columns("provider", "event_id", "event_type", "payload").
		Values(ev.Provider, ev.EventID, ev.EventType, ev.Payload).
		Suffix("ON CONFLICT (provider, event_id) DO NOTHING RETURNING id, outcome, attempts, created_at")
}

func bumpAttempts(provider, eventID string) sq.UpdateBuilder {
	return psql.Update("webhook_events").
		Set("attempts", sq.Expr("attempts + 1")).
		Where(byEvent(provider, eventID)).
		Suffix("RETURNING " + strings.Join(eventColumns, ", "))
}

func activateUser(email, tier string) sq.UpdateBuilder {
	return psql.Update("users").
		Set("tier", tier).
		Set("active", true).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"email": email}).
		Suffix("RETURNING id")
}

// upsertBilling keeps polar_order_id from the first order.
func upsertBilling(userID uuid.UUID, orderID *string, tier string) sq.InsertBuilder {
	return psql.Insert("billing").
		Columns("user_id", "polar_order_id", "tier", "status").
		Values(userID, orderID, tier, models.BillingStatusActive).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, status = EXCLUDED.status, updated_at = now()")
}

func finishEvent(provider, eventID, outcome string) sq.UpdateBuilder {
	return psql.Update("webhook_events").
		Set("outcome", outcome).
		Set("processed_at", sq.Expr("now()")).
		Where(byEvent(provider, eventID))
}

func markAlerted(provider, eventID string) sq.UpdateBuilder {
	return psql.Update("webhook_events").
		Set("alerted_at", sq.Expr("now()")).
		Where(byEvent(provider, eventID))
}
