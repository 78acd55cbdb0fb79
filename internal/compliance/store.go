// Package compliance stores the customer and shop records that the GDPR
// webhooks read and erase.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("compliance record not found")

// Store is keyed by an external identifier (customer id or shop id).
// Records are created elsewhere; this system only reads and deletes them.
type Store interface {
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a map-backed Store. The mutex only protects the map itself:
// a request that reads a record while another erases it sees either outcome.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

// NewMemoryStore copies records. A null record counts as absent and is skipped.
func NewMemoryStore(records map[string]json.RawMessage) *MemoryStore {
	m := &MemoryStore{records: make(map[string]json.RawMessage, len(records))}
	for id, data := range records {
		if !isNull(data) {
			m.records[id] = data
		}
	}
	return m
}

// Put stores data under id; storing null removes the record.
func (m *MemoryStore) Put(id string, data json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isNull(data) {
		delete(m.records, id)
		return
	}
	m.records[id] = data
}

func (m *MemoryStore) Get(_ context.Context, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// isNull reports a record with no data: empty or the JSON literal null.
func isNull(data json.RawMessage) bool {
	b := bytes.TrimSpace(data)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
