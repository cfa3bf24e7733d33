package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(embedMigrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		body, err := fs.ReadFile(embedMigrations, f)
		require.NoError(t, err)
		sql := string(body)
		assert.True(t, strings.Contains(sql, "-- +goose Up"), "%s has no Up section", f)
		assert.True(t, strings.Contains(sql, "-- +goose Down"), "%s has no Down section", f)
	}
}

func TestInitMigration_DeclaresConstraints(t *testing.T) {
	body, err := fs.ReadFile(embedMigrations, "migrations/00001_init.sql")
	require.NoError(t, err)
	sql := string(body)

	for _, want := range []string{
		"email             VARCHAR(255) NOT NULL UNIQUE",
		"user_id           UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE",
		"UNIQUE (provider, event_id)",
		"DEFAULT 'claude-haiku-4-5'",
		"DEFAULT 'anthropic'",
	} {
		assert.Contains(t, sql, want)
	}
}
