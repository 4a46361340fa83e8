package folio

import (
	"errors"
	"io"
)

// ErrStagingFull is returned when staging content would exceed the area's capacity.
var ErrStagingFull = errors.New("staging area full")

// StagingArea spools upload content before it is handed to the object store.
// The area has a fixed capacity shared by all uploads in flight.
type StagingArea interface {
	// Stage calls write with a writer backed by a fresh slot and returns
	// the staged content once write returns nil. On any error the slot is released.
	Stage(write func(w io.Writer) error) (StagedContent, error)

	// Size returns the bytes currently held by the area.
	Size() (int64, error)
}

// StagedContent is one spooled upload. Release must be called once the content
// has been consumed.
type StagedContent interface {
	Size() int64
	Open() (io.ReadCloser, error)
	Release()
}
