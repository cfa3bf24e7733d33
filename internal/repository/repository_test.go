package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErr(t *testing.T) {
	other := errors.New("conn reset")

	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23505"}), ErrDuplicate)
	assert.Equal(t, other, mapErr(other))
	fk := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, error(fk), mapErr(fk))
}

func TestAgentQueries_ScopedByOwner(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	scoped := []any{id.String(), userID.String()}

	query, args, err := agentByOwnerQuery(userID, id).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+strings.Join(agentColumns, ", ")+" FROM agents WHERE id = $1 AND user_id = $2", query)
	assert.Equal(t, scoped, args)

	query, args, err = agentsByOwnerQuery(userID).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(query, "FROM agents WHERE user_id = $1 ORDER BY created_at DESC"), query)
	assert.Equal(t, []any{userID.String()}, args)

	query, args, err = agentStatusUpdate(userID, id, "inactive").ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query,
		"UPDATE agents SET status = $1, updated_at = now() WHERE id = $2 AND user_id = $3 RETURNING id, user_id,"), query)
	assert.Equal(t, []any{"inactive", id.String(), userID.String()}, args)

	query, args, err = agentDelete(userID, id).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM agents WHERE id = $1 AND user_id = $2", query)
	assert.Equal(t, scoped, args)

	query, args, err = agentCountQuery(userID).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) FROM agents WHERE user_id = $1 GROUP BY status", query)
	assert.Equal(t, []any{userID.String()}, args)
}

func TestNullJSON(t *testing.T) {
	assert.Nil(t, nullJSON(nil))
	assert.Nil(t, nullJSON([]byte{}))
	assert.NotNil(t, nullJSON([]byte(`{"temperature":0.2}`)))
}
