package metadata

import (
	"context"
	"sync"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// GetMetadata implements Store. The returned record is a copy.
func (m *MemoryStore) GetMetadata(_ context.Context, assetPath string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[assetPath]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// PutMetadata implements Store.
func (m *MemoryStore) PutMetadata(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.AssetPath] = *rec
	return nil
}

// DeleteMetadata implements Store.
func (m *MemoryStore) DeleteMetadata(_ context.Context, assetPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, assetPath)
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
