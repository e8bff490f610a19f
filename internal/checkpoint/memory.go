package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// MemoryStore keeps everything in process memory. It backs tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CheckpointEntry
	states  map[string]domain.PublishState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]domain.CheckpointEntry),
		states:  make(map[string]domain.PublishState),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.CheckpointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) Put(_ context.Context, entry domain.CheckpointEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entry.ItemID] = entry
	return nil
}

// List returns entries ordered by item ID.
func (m *MemoryStore) List(_ context.Context) ([]domain.CheckpointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.CheckpointEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) LoadState(_ context.Context, id string) (*domain.PublishState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) SaveState(_ context.Context, state domain.PublishState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.ItemID] = state
	return nil
}

func (m *MemoryStore) DeleteState(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, id)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
