package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend is a goroutine-safe in-memory Backend, intended for tests
// and single-process development. Records are stored serialized so that
// callers observe the same JSON round-trip semantics as the durable
// backends.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (m *MemoryBackend) LoadUserRecord(ctx context.Context, userID string) (map[string]any, error) {
	m.mu.RLock()
	data, ok := m.records[userID]
	m.mu.RUnlock()
	if !ok {
		return map[string]any{}, nil
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return record, nil
}

func (m *MemoryBackend) SaveUserRecord(ctx context.Context, userID string, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	m.mu.Lock()
	m.records[userID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[userID]; !ok {
		return false, nil
	}
	delete(m.records, userID)
	return true, nil
}

func (m *MemoryBackend) HealthCheck(ctx context.Context) bool {
	return true
}

func (m *MemoryBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
