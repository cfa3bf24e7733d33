package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goclaw/backend/internal/models"
)

var userColumns = []string{"id", "email", "polar_customer_id", "tier", "active", "created_at", "updated_at"}

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts u and fills in its id and timestamps. A taken email or
// Polar customer id returns ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	query, args, err := psql.Insert("users").
		Columns("email", "polar_customer_id", "tier", "active").
		Values(u.Email, u.PolarCustomerID, u.Tier, u.Active).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *UserRepo) getOne(ctx context.Context, where sq.Eq) (*models.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user: %w", err)
	}
	var u models.User
	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.PolarCustomerID, &u.Tier, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
