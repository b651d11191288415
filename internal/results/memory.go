package results

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is a development-only repository used when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	games map[string]GameRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{games: make(map[string]GameRecord)}
}

func (m *MemoryRepository) SaveResult(_ context.Context, rec GameRecord) error {
	rec = Normalize(rec)
	rec.MovesUCI = append([]string(nil), rec.MovesUCI...)
	rec.MovesSAN = append([]string(nil), rec.MovesSAN...)
	m.mu.Lock()
	m.games[rec.GameID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) Recent(_ context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	out := make([]GameRecord, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, gameID string) (*GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (m *MemoryRepository) Close() error { return nil }
