package revocation

import (
	"context"
	"sync"
	"time"

	"folio/internal/folio"
)

// MemoryList keeps revoked token ids in process memory. Entries are dropped
// once the token they refer to has expired on its own.
type MemoryList struct {
	clock folio.Clock

	mu      sync.Mutex
	revoked map[string]time.Time
}

var _ folio.RevocationList = (*MemoryList)(nil)

func NewMemoryList(clock folio.Clock) *MemoryList {
	return &MemoryList{
		clock:   clock,
		revoked: make(map[string]time.Time),
	}
}

func (m *MemoryList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purge()
	if until.After(m.clock.Now()) {
		m.revoked[tokenID] = until
	}
	return nil
}

func (m *MemoryList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !until.After(m.clock.Now()) {
		delete(m.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// Len returns the number of entries still held.
func (m *MemoryList) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.revoked)
}

func (m *MemoryList) purge() {
	now := m.clock.Now()
	for id, until := range m.revoked {
		if !until.After(now) {
			delete(m.revoked, id)
		}
	}
}

// NoneList never revokes anything; tokens stay valid until they expire.
type NoneList struct{}

var _ folio.RevocationList = NoneList{}

func (NoneList) Revoke(context.Context, string, time.Time) error { return nil }
func (NoneList) IsRevoked(context.Context, string) (bool, error) { return false, nil }
