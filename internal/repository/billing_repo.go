package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goclaw/backend/internal/models"
)

// BillingRepo reads billing rows. Writes happen inside the webhook
// transaction in the billing package.
type BillingRepo struct {
	pool *pgxpool.Pool
}

func NewBillingRepo(pool *pgxpool.Pool) *BillingRepo {
	return &BillingRepo{pool: pool}
}

func (r *BillingRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Billing, error) {
	query, args, err := psql.Select(
		"id", "user_id", "polar_order_id", "tier", "status", "next_billing_date", "created_at", "updated_at",
	).From("billing").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select billing: %w", err)
	}
	var b models.Billing
	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&b.ID, &b.UserID, &b.PolarOrderID, &b.Tier, &b.Status, &b.NextBillingDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}
