package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string]*Run
}

// NewMemoryStore returns a store that lives in the process
func NewMemoryStore() TranscriptStore {
	return &inMemory{}
}

func (m *inMemory) Save(_ context.Context, run *Run) error {
	if err := validate(run); err != nil {
		return err
	}

	cp := *run
	cp.Messages = slices.Clone(run.Messages)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string]*Run)
	}
	m.storage[run.ChatID] = &cp
	return nil
}

func (m *inMemory) Load(_ context.Context, chatID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.storage[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *run
	cp.Messages = slices.Clone(run.Messages)
	return &cp, nil
}

func (m *inMemory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.storage))
	for id := range m.storage {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *inMemory) Delete(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, chatID)
	return nil
}

func (m *inMemory) Cleanup(_ context.Context, olderThan time.Duration) (uint32, error) {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := uint32(0)
	for id, run := range m.storage {
		if run.CreatedAt.Before(cutoff) {
			delete(m.storage, id)
			deleted++
		}
	}
	return deleted, nil
}
