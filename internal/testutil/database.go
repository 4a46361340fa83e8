package testutil

import (
	"testing"

	"folio/internal/database"
	"folio/internal/folio"
)

// NewTestStore creates a new in-memory SQLite store with the schema applied.
// The store is closed when the test completes.
func NewTestStore(t *testing.T) folio.Store {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
