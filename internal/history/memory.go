package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the most recent entries in a fixed-size ring. Older
// entries are overwritten once the ring is full.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	now     func() time.Time
}

// NewMemoryStore returns a store holding at most size entries.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultLimit
	}
	return &MemoryStore{
		entries: make([]Entry, size),
		now:     time.Now,
	}
}

// Record appends e, evicting the oldest entry when full.
func (m *MemoryStore) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = prepare(e, m.now())
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.lenLocked()
	if limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lenLocked()
}

func (m *MemoryStore) lenLocked() int {
	if m.full {
		return len(m.entries)
	}
	return m.next
}
