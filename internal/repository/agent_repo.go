package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goclaw/backend/internal/models"
)

var agentColumns = []string{
	"id", "user_id", "name", "description", "model", "provider", "status", "config", "created_at", "updated_at",
}

// AgentRepo reads and writes agents. Every method takes the owning user id
// and filters on it.
type AgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

func (r *AgentRepo) Create(ctx context.Context, ag *models.Agent) error {
	query, args, err := psql.Insert("agents").
		Columns("user_id", "name", "description", "model", "provider", "status", "config").
		Values(ag.UserID, ag.Name, ag.Description, ag.Model, ag.Provider, ag.Status, nullJSON(ag.Config)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert agent: %w", err)
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&ag.ID, &ag.CreatedAt, &ag.UpdatedAt)
}

// ListByUserID returns the user's agents, newest first.
func (r *AgentRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Agent, error) {
	query, args, err := agentsByOwnerQuery(userID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list agents: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Agent{}
	for rows.Next() {
		ag, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ag)
	}
	return list, rows.Err()
}

func (r *AgentRepo) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Agent, error) {
	query, args, err := agentByOwnerQuery(userID, id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get agent: %w", err)
	}
	ag, err := scanAgent(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return ag, nil
}

func (r *AgentRepo) UpdateStatusForUser(ctx context.Context, userID, id uuid.UUID, status string) (*models.Agent, error) {
	query, args, err := agentStatusUpdate(userID, id, status).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update agent: %w", err)
	}
	ag, err := scanAgent(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return ag, nil
}

func (r *AgentRepo) DeleteForUser(ctx context.Context, userID, id uuid.UUID) error {
	query, args, err := agentDelete(userID, id).ToSql()
	if err != nil {
		return fmt.Errorf("build delete agent: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of the user's agents per status.
func (r *AgentRepo) CountByStatus(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	query, args, err := agentCountQuery(userID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count agents: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func agentsByOwnerQuery(userID uuid.UUID) sq.SelectBuilder {
	return psql.Select(agentColumns...).
		From("agents").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
}

func agentByOwnerQuery(userID, id uuid.UUID) sq.SelectBuilder {
	return psql.Select(agentColumns...).
		From("agents").
		Where(sq.Eq{"id": id, "user_id": userID})
}

func agentStatusUpdate(userID, id uuid.UUID, status string) sq.UpdateBuilder {
	return psql.Update("agents").
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + strings.Join(agentColumns, ", "))
}

func agentDelete(userID, id uuid.UUID) sq.DeleteBuilder {
	return psql.Delete("agents").Where(sq.Eq{"id": id, "user_id": userID})
}

func agentCountQuery(userID uuid.UUID) sq.SelectBuilder {
	return psql.Select("status", "COUNT(*)").
		From("agents").
		Where(sq.Eq{"user_id": userID}).
		GroupBy("status")
}

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var ag models.Agent
	err := row.Scan(&ag.ID, &ag.UserID, &ag.Name, &ag.Description, &ag.Model, &ag.Provider,
		&ag.Status, &ag.Config, &ag.CreatedAt, &ag.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ag, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
