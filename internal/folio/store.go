package folio

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"folio/internal/model"
)

// ErrDuplicateKey is returned by Store inserts that violate a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

// Store provides persistence for users and tree entries.
// Each method is atomic on its own; nothing spans more than one call.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	// User operations

	FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)

	// InsertUser assigns user.ID and stores the user.
	InsertUser(ctx context.Context, user *model.User) (primitive.ObjectID, error)

	// DeleteUser reports whether a user was removed.
	DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error)

	ListUsers(ctx context.Context) ([]*model.User, error)

	// Entry operations

	FindEntryByID(ctx context.Context, id primitive.ObjectID) (*model.Entry, error)

	// FindEntryByPath returns the entry named filename inside folderPath.
	FindEntryByPath(ctx context.Context, ownerID primitive.ObjectID, folderPath, filename string) (*model.Entry, error)

	// FindEntryInScope returns any one entry whose folder path equals scope.
	// With subtree set, entries whose folder path lies below scope match too.
	FindEntryInScope(ctx context.Context, ownerID primitive.ObjectID, scope string, subtree bool) (*model.Entry, error)

	// InsertEntry assigns entry.ID and stores the entry.
	InsertEntry(ctx context.Context, entry *model.Entry) (primitive.ObjectID, error)

	// DeleteEntry reports whether an entry was removed.
	DeleteEntry(ctx context.Context, id primitive.ObjectID) (bool, error)

	ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
