package publisher

import (
	"context"
	"slices"
	"sync"

	"trustreg/internal/registry/models"
)

// Memory keeps published events in process. Used when Kafka is not configured.
type Memory struct {
	mu     sync.Mutex
	events []models.RegistryEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, evt models.RegistryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) Events() []models.RegistryEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}
