// generate_schema applies every migration to an in-memory SQLite database and
// writes the resulting schema to schema.sql for tests to load directly.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"folio/internal/database"
	"folio/internal/database/migrations"
)

const schemaQuery = `
	SELECT sql
	FROM sqlite_master
	WHERE type IN ('table', 'index')
	  AND sql IS NOT NULL
	  AND name NOT LIKE 'sqlite_%'
	  AND tbl_name != 'schema_migrations'
	ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, name`

func main() {
	out := flag.String("out", "internal/database/schema.sql", "path of the generated schema file")
	flag.Parse()
	log.SetFlags(0)

	db, err := database.OpenConnection(":memory:")
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		log.Fatalf("applying migrations: %v", err)
	}
	version, err := migrations.LatestVersion()
	if err != nil {
		log.Fatalf("reading latest migration version: %v", err)
	}

	schema, err := dumpSchema(db, version)
	if err != nil {
		log.Fatalf("dumping schema: %v", err)
	}
	if err := os.WriteFile(*out, []byte(schema), 0644); err != nil {
		log.Fatalf("writing %s: %v", *out, err)
	}
	fmt.Printf("wrote %s (migration %d)\n", *out, version)
}

func dumpSchema(db *sql.DB, version uint) (string, error) {
	rows, err := db.Query(schemaQuery)
	if err != nil {
		return "", fmt.Errorf("querying sqlite_master: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	b.WriteString("-- This file is auto-generated from migration files.\n")
	b.WriteString("-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.\n")
	fmt.Fprintf(&b, "-- Source: internal/database/migrations/files/*.sql (version %d)\n\n", version)

	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning statement: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating statements: %w", err)
	}
	return b.String(), nil
}
