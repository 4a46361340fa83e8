package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"users", "files", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckStatus(db)
	if !errors.Is(err, ErrNeedsMigration) {
		t.Errorf("CheckStatus() error = %v, want ErrNeedsMigration", err)
	}
}

func TestCheckStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after migration returned error: %v", err)
	}

	st, err := ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if st.Current != st.Latest || st.Dirty {
		t.Errorf("ReadStatus() = %+v, want current == latest and clean", st)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after double migration returned error: %v", err)
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v < 1 {
		t.Errorf("LatestVersion() = %d, want >= 1", v)
	}
}

func TestSchema_EntryTripleUnique(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `INSERT INTO files (id, owner_id, folder_path, filename, upload_timestamp)
		VALUES (?, 'owner-1', '/docs', 'a.txt', datetime('now'))`
	if _, err := db.Exec(insert, "file-1"); err != nil {
		t.Fatalf("Failed to insert first entry: %v", err)
	}
	if _, err := db.Exec(insert, "file-2"); err == nil {
		t.Error("Expected unique constraint violation for duplicate path, but insert succeeded")
	}

	// Same name in another folder is fine.
	_, err := db.Exec(`INSERT INTO files (id, owner_id, folder_path, filename, upload_timestamp)
		VALUES ('file-3', 'owner-1', '/other', 'a.txt', datetime('now'))`)
	if err != nil {
		t.Errorf("Insert into another folder failed: %v", err)
	}
}

func TestSchema_UsernameUniqueWhenSet(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := "INSERT INTO users (id, email, username, password, created_at) VALUES (?, ?, ?, 'x', datetime('now'))"
	if _, err := db.Exec(insert, "u1", "a@example.com", nil); err != nil {
		t.Fatalf("insert u1: %v", err)
	}
	if _, err := db.Exec(insert, "u2", "b@example.com", nil); err != nil {
		t.Errorf("second user without username rejected: %v", err)
	}
	if _, err := db.Exec(insert, "u3", "c@example.com", "alice"); err != nil {
		t.Fatalf("insert u3: %v", err)
	}
	if _, err := db.Exec(insert, "u4", "d@example.com", "alice"); err == nil {
		t.Error("Expected unique constraint violation for duplicate username, but insert succeeded")
	}
	if _, err := db.Exec(insert, "u5", "a@example.com", "bob"); err == nil {
		t.Error("Expected unique constraint violation for duplicate email, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
