package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

func TestListQueryNumbersPlaceholdersAfterBaseArgs(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	query, args := listQuery(
		"SELECT * FROM records WHERE kind = $1",
		[]any{"market"},
		domain.ListOpts{Since: &since, Until: &until, Limit: 10, Offset: 20},
		"created_at, key",
	)

	assert.Equal(t,
		"SELECT * FROM records WHERE kind = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at, key LIMIT $4 OFFSET $5",
		query)
	require.Len(t, args, 5)
	assert.Equal(t, []any{"market", since, until, 10, 20}, args)
}

func TestListQueryWithoutOptions(t *testing.T) {
	query, args := listQuery("SELECT id FROM audit_log WHERE 1=1", nil, domain.ListOpts{}, "created_at DESC")
	assert.Equal(t, "SELECT id FROM audit_log WHERE 1=1 ORDER BY created_at DESC", query)
	assert.Empty(t, args)
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Contains(t, names, "001_init.sql")
}

func TestDSNPrefersExplicitValue(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x"}))
	assert.Equal(t,
		"postgres://u:p@db:5432/lmsr?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "lmsr"}))
}
