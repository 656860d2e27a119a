package journal

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"trustreg/contracts/registry"
	"trustreg/pkg/platform/sentinel"
)

// Memory is a process-local journal for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.entries); n > 0 && e.Height <= m.entries[n-1].Height {
		return fmt.Errorf("append height %d after %d: %w", e.Height, m.entries[n-1].Height, sentinel.ErrConflict)
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Load(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries), nil
}

func (m *Memory) EntriesFor(_ context.Context, entities ...registry.EntityID) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if slices.Contains(entities, e.EntityID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
