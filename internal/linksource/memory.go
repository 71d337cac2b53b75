package linksource

import (
	"context"
	"sort"
	"sync"
	"time"

	"linkdesk.org/internal/ids"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]LinkSource
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]LinkSource)}
}

func (m *MemoryStore) Create(ctx context.Context, name string) (LinkSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	ls := LinkSource{ID: ids.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	m.items[ls.ID] = ls
	return ls, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]LinkSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LinkSource, 0, len(m.items))
	for _, ls := range m.items {
		out = append(out, ls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, id, name string) (LinkSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.items[id]
	if !ok {
		return LinkSource{}, ErrNotFound
	}
	ls.Name = name
	ls.UpdatedAt = time.Now().UTC()
	m.items[id] = ls
	return ls, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) (LinkSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.items[id]
	if !ok {
		return LinkSource{}, ErrNotFound
	}
	delete(m.items, id)
	return ls, nil
}
