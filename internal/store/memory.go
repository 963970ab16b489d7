package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/starford/notesjson/internal/models"
)

// Memory is a Store kept entirely in process memory.
// Used by tests and previews; nothing survives Close.
type Memory struct {
	mu    sync.RWMutex
	notes []models.Note // insertion order
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Create(_ context.Context, nn models.NewNote) (models.Note, error) {
	if err := ValidateTitle(nn.Title); err != nil {
		return models.Note{}, err
	}
	n := mint(nn)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *Memory) Update(_ context.Context, id string, p models.Patch) (models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return models.Note{}, notFound(id)
	}
	n, err := apply(m.notes[i], p, time.Now())
	if err != nil {
		return models.Note{}, err
	}
	m.notes[i] = n
	return n, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return notFound(id)
	}
	m.notes = slices.Delete(m.notes, i, i+1)
	return nil
}

func (m *Memory) DeleteAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.notes)
	m.notes = nil
	return n, nil
}

func (m *Memory) List(_ context.Context) ([]models.Note, error) {
	m.mu.RLock()
	out := slices.Clone(m.notes)
	m.mu.RUnlock()

	if out == nil {
		out = []models.Note{}
	}
	slices.SortStableFunc(out, func(a, b models.Note) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (models.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return models.Note{}, notFound(id)
	}
	return m.notes[i], nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notes), nil
}

func (m *Memory) indexOf(id string) int {
	return slices.IndexFunc(m.notes, func(n models.Note) bool { return n.ID == id })
}
