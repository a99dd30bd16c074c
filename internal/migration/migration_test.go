package migration

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRunMigrations_FreshDatabaseAndRerun(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migration_fresh?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	require.NoError(t, RunMigrations(sqlDB, "sqlite"))

	for _, table := range []string{
		"accounts", "transactions", "plans", "orders", "resource_snapshots",
		"payment_methods", "payments",
	} {
		var count int
		require.NoError(t, sqlDB.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count))
		require.Equal(t, 1, count, "missing table %s", table)
	}

	var count int
	require.NoError(t, sqlDB.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_orders_external_username'`,
	).Scan(&count))
	require.Equal(t, 1, count)

	// Index creation is guarded by schema versioning, so a rerun is a no-op.
	require.NoError(t, RunMigrations(sqlDB, "sqlite"))
}
