package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"folio/internal/folio"
)

// Mongo tests run only against a live server named by FOLIO_TEST_MONGO_URI.
// Each test gets its own database, dropped on cleanup.
func TestMongoDatabase_Store(t *testing.T) {
	uri := os.Getenv("FOLIO_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FOLIO_TEST_MONGO_URI not set")
	}

	n := 0
	runStoreContract(t, func(t *testing.T) folio.Store {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		n++
		name := fmt.Sprintf("folio_test_%d_%d", time.Now().UnixNano(), n)
		db, err := NewMongoDatabase(ctx, uri, name)
		if err != nil {
			t.Fatalf("NewMongoDatabase() error = %v", err)
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			db.Close()
			t.Fatalf("EnsureIndexes() error = %v", err)
		}

		t.Cleanup(func() {
			db.client.Database(name).Drop(context.Background())
			db.Close()
		})
		return db
	})
}
