package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process QuestionStore. The CLI uses it for dry runs
// that should not touch the table.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]QuestionRecord
	puts    int
}

var _ QuestionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]QuestionRecord)}
}

// PutRecord stores a copy of record, replacing any previous one.
func (m *MemoryStore) PutRecord(ctx context.Context, record *QuestionRecord) error {
	if record == nil || record.ID == "" {
		return ErrEmptyID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = *record
	m.puts++
	return nil
}

// GetRecord returns a copy of the record, or nil, nil when absent.
func (m *MemoryStore) GetRecord(ctx context.Context, id string) (*QuestionRecord, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Len returns the number of distinct records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Puts returns how many writes were accepted.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
