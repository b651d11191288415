package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no Redis URL is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), now: time.Now}
}

func (s *MemoryStore) Close() error { return nil }

// Records are stored encoded so callers never share slices with the store.
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("save session: missing id")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	s.mu.Lock()
	s.data[rec.ID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	raw, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(id, raw)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendMove(_ context.Context, id string, expectedPly int, e MoveEntry) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cur, err := decode(id, raw)
	if err != nil {
		return nil, err
	}
	if finished(cur) {
		return nil, ErrFinished
	}
	if cur.Ply() != expectedPly {
		return nil, ErrStalePly
	}
	apply(cur, e, s.now())
	newRaw, err := json.Marshal(cur)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", id, err)
	}
	s.data[id] = newRaw
	return cur, nil
}

func decode(id string, raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &rec, nil
}
