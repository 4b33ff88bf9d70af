package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used when DATABASE_URL is ":memory:" and in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
}

type memoryNamespace struct {
	order   []string
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]*memoryNamespace)}
}

func (m *MemoryStore) Upsert(_ context.Context, namespace string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = &memoryNamespace{records: make(map[string]Record)}
		m.namespaces[namespace] = ns
	}

	now := time.Now()
	for _, r := range records {
		if _, exists := ns.records[r.ID]; !exists {
			ns.order = append(ns.order, r.ID)
		}
		r.CreatedAt = now
		ns.records[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) Count(_ context.Context, namespace string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ns, ok := m.namespaces[namespace]; ok {
		return len(ns.records), nil
	}
	return 0, nil
}

func (m *MemoryStore) Records(_ context.Context, namespace string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil, nil
	}
	out := make([]Record, 0, len(ns.order))
	for _, id := range ns.order {
		out = append(out, ns.records[id])
	}
	return out, nil
}

func (m *MemoryStore) DropNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
