package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"folio/internal/config"
	"folio/internal/folio"
)

// NewDatabaseFromConfig creates a Store implementation based on the database config type.
// SQLite databases are migrated when AutoMigrate is set (always for "memory") and
// otherwise must already be at the latest schema version. Mongo indexes are ensured.
func NewDatabaseFromConfig(ctx context.Context, cfg config.DatabaseConfig) (folio.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return openSQLite(filepath.Join(cfg.DataDir, "folio.db"), cfg.AutoMigrate)
	case "memory":
		return openSQLite(":memory:", true)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongo_uri required for mongo database")
		}
		name := cfg.MongoDatabase
		if name == "" {
			name = config.DefaultMongoDatabase
		}
		db, err := NewMongoDatabase(ctx, cfg.MongoURI, name)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func openSQLite(path string, migrate bool) (folio.Store, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}

	if migrate {
		err = db.Migrate()
	} else {
		err = db.CheckMigrations()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema: %w", err)
	}
	return db, nil
}

// MigrateFromConfig brings the configured database to the latest schema:
// SQLite migrations for "sqlite", index creation for "mongo".
func MigrateFromConfig(ctx context.Context, cfg config.DatabaseConfig) error {
	if cfg.Type == "sqlite" {
		cfg.AutoMigrate = true
	}
	db, err := NewDatabaseFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	return db.Close()
}
