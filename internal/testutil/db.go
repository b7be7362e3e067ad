// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/emberctl/pkg/database"
)

// NewDB opens a private in-memory SQLite database that is closed when the
// test ends. Statements in ddl run in order.
func NewDB(t *testing.T, ddl ...string) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range ddl {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err)
	}
	return db
}

// UsersDDL mirrors the users table for tests that need foreign keys to resolve.
const UsersDDL = `CREATE TABLE users (name VARCHAR(255) PRIMARY KEY, password_hash VARCHAR(255) NOT NULL)`
