package staging

import "io"

// stagingStore abstracts where staged bytes live.
// Concurrency is managed by the caller (stagingArea.mu) for Create, Open and
// Remove; the writer returned by Create is used by one goroutine only.
type stagingStore interface {
	// Create allocates a new slot and returns its id and a writer for it.
	Create() (id string, w io.WriteCloser, err error)

	// Open returns a reader for a slot's content.
	Open(id string) (io.ReadCloser, error)

	// Remove discards a slot (best-effort).
	Remove(id string)
}
