package seen

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It does not survive restarts and is
// meant for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		records: make(map[string]time.Time),
		now:     o.now,
	}
}

// Has reports whether url has been recorded.
func (m *MemoryStore) Has(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("has", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.records[url]
	return ok, nil
}

// Record adds url unless it is already present.
func (m *MemoryStore) Record(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return storeErr("record", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[url]; !ok {
		m.records[url] = m.now()
	}
	return nil
}

// Sweep deletes records older than retention.
func (m *MemoryStore) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("sweep", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-retention)
	var removed int64
	for url, firstSeen := range m.records {
		if firstSeen.Before(cutoff) {
			delete(m.records, url)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
