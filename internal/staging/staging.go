package staging

import (
	"fmt"
	"io"
	"sync"

	"folio/internal/folio"
)

// stagingArea implements folio.StagingArea on a pluggable stagingStore.
// It charges every written byte against maxSize, shared by all slots,
// and gives the bytes back when a slot is released.
type stagingArea struct {
	store   stagingStore
	maxSize int64

	mu   sync.Mutex
	used int64
}

var _ folio.StagingArea = (*stagingArea)(nil)

func newStagingArea(store stagingStore, maxSize int64) *stagingArea {
	return &stagingArea{store: store, maxSize: maxSize}
}

// Stage runs write against a new slot. If write fails, or the area runs out of
// room, the slot is discarded and the error returned; running out of room
// yields an error wrapping folio.ErrStagingFull.
func (s *stagingArea) Stage(write func(w io.Writer) error) (folio.StagedContent, error) {
	s.mu.Lock()
	id, w, err := s.store.Create()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("creating staging slot: %w", err)
	}

	content := &stagedContent{area: s, id: id}
	werr := write(&budgetWriter{content: content, w: w})
	cerr := w.Close()
	if werr != nil {
		content.Release()
		return nil, werr
	}
	if cerr != nil {
		content.Release()
		return nil, fmt.Errorf("closing staging slot: %w", cerr)
	}
	return content, nil
}

// Size returns the bytes held by slots not yet released.
func (s *stagingArea) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used, nil
}

func (s *stagingArea) reserve(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used+n > s.maxSize {
		return fmt.Errorf("%w: would exceed max size of %d bytes", folio.ErrStagingFull, s.maxSize)
	}
	s.used += n
	return nil
}

// budgetWriter reserves room in the area before each write reaches the slot.
type budgetWriter struct {
	content *stagedContent
	w       io.Writer
}

func (b *budgetWriter) Write(p []byte) (int, error) {
	if err := b.content.area.reserve(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := b.w.Write(p)
	b.content.size += int64(len(p))
	return n, err
}

// stagedContent is one slot of the area.
type stagedContent struct {
	area *stagingArea
	id   string
	size int64

	once sync.Once
}

var _ folio.StagedContent = (*stagedContent)(nil)

func (c *stagedContent) Size() int64 { return c.size }

func (c *stagedContent) Open() (io.ReadCloser, error) {
	c.area.mu.Lock()
	defer c.area.mu.Unlock()
	return c.area.store.Open(c.id)
}

// Release discards the slot and returns its bytes to the area. Safe to call more than once.
func (c *stagedContent) Release() {
	c.once.Do(func() {
		c.area.mu.Lock()
		defer c.area.mu.Unlock()
		c.area.store.Remove(c.id)
		c.area.used -= c.size
	})
}
