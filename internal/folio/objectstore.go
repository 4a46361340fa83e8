package folio

import (
	"context"
	"io"
)

// ObjectStore holds file bytes. Entries keep only the key.
// All operations stream through io.Reader/io.Writer so large uploads
// never sit in memory as a whole.
type ObjectStore interface {
	// Put stores size bytes read from r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies that the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
