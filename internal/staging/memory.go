package staging

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"folio/internal/folio"
)

// memoryStore keeps staged bytes in memory.
type memoryStore struct {
	next  int
	slots map[string]*bytes.Buffer
}

// NewMemoryStagingArea creates an in-memory staging area holding at most maxSize bytes.
// This implementation is safe for concurrent use.
func NewMemoryStagingArea(maxSize int64) folio.StagingArea {
	return newStagingArea(&memoryStore{slots: make(map[string]*bytes.Buffer)}, maxSize)
}

func (m *memoryStore) Create() (string, io.WriteCloser, error) {
	m.next++
	id := strconv.Itoa(m.next)
	buf := &bytes.Buffer{}
	m.slots[id] = buf
	return id, nopWriteCloser{buf}, nil
}

func (m *memoryStore) Open(id string) (io.ReadCloser, error) {
	buf, ok := m.slots[id]
	if !ok {
		return nil, fmt.Errorf("staged content not found: %s", id)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (m *memoryStore) Remove(id string) {
	delete(m.slots, id)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
