package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"folio/internal/database/migrations"
	"folio/internal/folio"
	"folio/internal/model"
)

// SQLiteDatabase implements folio.Store on SQLite.
// Object ids are generated here and stored as hex text.
type SQLiteDatabase struct {
	db *sql.DB
}

var _ folio.Store = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path, which can be ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection, typically one from OpenConnection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database exists per connection, so the pool is pinned to one.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations returns an error if the schema is not at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// User operations

const userColumns = "id, name, email, username, password, created_at"

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return s.findUser(ctx, "id", id.Hex())
}

func (s *SQLiteDatabase) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, "email", email)
}

func (s *SQLiteDatabase) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, "username", username)
}

func (s *SQLiteDatabase) findUser(ctx context.Context, column, value string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by %s: %w", column, err)
	}
	return user, nil
}

func (s *SQLiteDatabase) InsertUser(ctx context.Context, user *model.User) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()

	var username sql.NullString
	if user.Username != "" {
		username = sql.NullString{String: user.Username, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		id.Hex(), user.Name, user.Email, username, user.PasswordHash, user.CreatedAt.UTC(),
	)
	if err != nil {
		return primitive.NilObjectID, insertError("user", err)
	}

	user.ID = id
	return id, nil
}

func (s *SQLiteDatabase) DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id.Hex())
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return rowsAffected(res)
}

func (s *SQLiteDatabase) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Entry operations

const entryColumns = "id, owner_id, folder_path, filename, is_folder, content_type, storage_key, size, checksum, encrypted, upload_timestamp"

func (s *SQLiteDatabase) FindEntryByID(ctx context.Context, id primitive.ObjectID) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM files WHERE id = ?", id.Hex())
	return findEntry(row, "id")
}

func (s *SQLiteDatabase) FindEntryByPath(ctx context.Context, ownerID primitive.ObjectID, folderPath, filename string) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM files WHERE owner_id = ? AND folder_path = ? AND filename = ?",
		ownerID.Hex(), folderPath, filename,
	)
	return findEntry(row, "path")
}

func (s *SQLiteDatabase) FindEntryInScope(ctx context.Context, ownerID primitive.ObjectID, scope string, subtree bool) (*model.Entry, error) {
	query := "SELECT " + entryColumns + " FROM files WHERE owner_id = ? AND folder_path = ? LIMIT 1"
	args := []any{ownerID.Hex(), scope}
	if subtree {
		// substr, not LIKE: folder names may contain % and _. Compared as
		// blobs so the length is in bytes for multi-byte names.
		prefix := folio.SubtreePrefix(scope)
		query = "SELECT " + entryColumns + " FROM files WHERE owner_id = ? AND (folder_path = ? OR substr(CAST(folder_path AS BLOB), 1, ?) = CAST(? AS BLOB)) LIMIT 1"
		args = append(args, len(prefix), prefix)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	return findEntry(row, "scope")
}

func (s *SQLiteDatabase) InsertEntry(ctx context.Context, entry *model.Entry) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO files ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id.Hex(), entry.OwnerID.Hex(), entry.FolderPath, entry.Filename, entry.IsFolder,
		entry.ContentType, entry.StorageKey, entry.Size, entry.Checksum, entry.Encrypted,
		entry.UploadTimestamp.UTC(),
	)
	if err != nil {
		return primitive.NilObjectID, insertError("entry", err)
	}

	entry.ID = id
	return id, nil
}

func (s *SQLiteDatabase) DeleteEntry(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id.Hex())
	if err != nil {
		return false, fmt.Errorf("deleting entry: %w", err)
	}
	return rowsAffected(res)
}

func (s *SQLiteDatabase) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	var where []string
	var args []any
	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID.Hex())
	}
	if filter.FolderPath != nil {
		where = append(where, "folder_path = ?")
		args = append(args, *filter.FolderPath)
	}

	query := "SELECT " + entryColumns + " FROM files"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY owner_id, folder_path, filename"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		id        string
		username  sql.NullString
		createdAt time.Time
		user      model.User
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &username, &user.PasswordHash, &createdAt); err != nil {
		return nil, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("parsing user id %q: %w", id, err)
	}
	user.ID = oid
	user.Username = username.String
	user.CreatedAt = createdAt.UTC()
	return &user, nil
}

func scanEntry(row scanner) (*model.Entry, error) {
	var (
		id, ownerID string
		uploadedAt  time.Time
		entry       model.Entry
	)
	err := row.Scan(&id, &ownerID, &entry.FolderPath, &entry.Filename, &entry.IsFolder,
		&entry.ContentType, &entry.StorageKey, &entry.Size, &entry.Checksum, &entry.Encrypted,
		&uploadedAt)
	if err != nil {
		return nil, err
	}

	if entry.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("parsing entry id %q: %w", id, err)
	}
	if entry.OwnerID, err = primitive.ObjectIDFromHex(ownerID); err != nil {
		return nil, fmt.Errorf("parsing owner id %q: %w", ownerID, err)
	}
	entry.UploadTimestamp = uploadedAt.UTC()
	return &entry, nil
}

func findEntry(row *sql.Row, by string) (*model.Entry, error) {
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding entry by %s: %w", by, err)
	}
	return entry, nil
}

func insertError(what string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("inserting %s: %w", what, folio.ErrDuplicateKey)
	}
	return fmt.Errorf("inserting %s: %w", what, err)
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
