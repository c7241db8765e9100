package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations_SQLite(t *testing.T) {
	conn := filepath.Join(t.TempDir(), "nested", "users.db")
	database, err := Init("sqlite", conn)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, RunMigrations(database.DB, "sqlite"))

	version, err := Version(database.DB, "sqlite")
	require.NoError(t, err)
	require.EqualValues(t, 1, version)

	var count int
	require.NoError(t, database.Get(&count, `SELECT COUNT(*) FROM users`))
	require.Zero(t, count)

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(database.DB, "sqlite"))

	require.NoError(t, MigrateDown(database.DB, "sqlite"))
	version, err = Version(database.DB, "sqlite")
	require.NoError(t, err)
	require.EqualValues(t, 0, version)
}

func TestGetDialect(t *testing.T) {
	require.Equal(t, "sqlite3", getDialect("sqlite"))
	require.Equal(t, "postgres", getDialect("pgx"))
	require.Equal(t, "mysql", getDialect("mysql"))
}
