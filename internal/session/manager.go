package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/sessionstore"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// persistTimeout bounds one store write. Writes outlive the caller's context so
// a move the broker applied is stored even when its match is canceled.
const persistTimeout = 5 * time.Second

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// Manager creates, loads and resets sessions and keeps their store records current.
// Every session is served by one Broker, whose mutex serializes all access to it.
type Manager struct {
	mu      sync.RWMutex
	brokers map[string]*Broker
	store   sessionstore.Store
	opts    []BrokerOption
	logger  *zap.Logger
}

// NewManager uses store for persistence; a nil store keeps sessions in memory.
// opts are applied to every broker the manager creates.
func NewManager(store sessionstore.Store, logger *zap.Logger, opts ...BrokerOption) *Manager {
	if store == nil {
		store = sessionstore.NewMemoryStore()
	}
	return &Manager{
		brokers: make(map[string]*Broker),
		store:   store,
		opts:    opts,
		logger:  obslog.Or(logger),
	}
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context, white, black Player, fen string) (*Broker, error) {
	s, err := NewGameSession("", white, black, fen)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, s.Record()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	b := m.register(s)
	m.logger.Info("arena_game_create",
		zap.String("game_id", s.ID),
		zap.String("white", white.Name),
		zap.String("black", black.Name),
		zap.String("fen", s.Board.StartingFEN()),
	)
	return b, nil
}

// Get returns the broker of id, restoring it from the store when needed.
func (m *Manager) Get(ctx context.Context, id string) (*Broker, error) {
	id = strings.TrimSpace(id)
	m.mu.RLock()
	b, ok := m.brokers[id]
	m.mu.RUnlock()
	if ok {
		return b, nil
	}

	rec, err := m.store.Load(ctx, id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	s, err := FromRecord(rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.brokers[id]; ok {
		return existing, nil
	}
	b = m.newBroker(s)
	m.brokers[id] = b
	return b, nil
}

// Reset puts the session back to the starting position.
func (m *Manager) Reset(ctx context.Context, id string) (*Broker, error) {
	b, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Reset()
	var rec *sessionstore.Record
	b.Do(func(s *GameSession) { rec = s.Record() })
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	return b, nil
}

// Delete forgets a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.brokers, id)
	m.mu.Unlock()
	return m.store.Delete(ctx, id)
}

// IDs lists the sessions held in this process.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.brokers))
	for id := range m.brokers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close releases the store.
func (m *Manager) Close() error { return m.store.Close() }

func (m *Manager) register(s *GameSession) *Broker {
	b := m.newBroker(s)
	m.mu.Lock()
	m.brokers[s.ID] = b
	m.mu.Unlock()
	return b
}

func (m *Manager) newBroker(s *GameSession) *Broker {
	opts := make([]BrokerOption, 0, len(m.opts)+3)
	opts = append(opts, WithLogger(m.logger))
	opts = append(opts, m.opts...)
	opts = append(opts, WithMoveHook(m.persistMove), WithFinishHook(m.persistFinish))
	return NewBroker(s, opts...)
}

func (m *Manager) persistMove(ctx context.Context, ev MoveEvent) {
	ctx, cancel := persistContext(ctx)
	defer cancel()
	_, err := m.store.AppendMove(ctx, ev.SessionID, ev.Ply, sessionstore.MoveEntry{
		UCI:      ev.Result.UCI,
		SAN:      ev.Result.SAN,
		FEN:      ev.FEN,
		State:    string(ev.State),
		Outcome:  ev.SessionView.Outcome,
		Snapshot: ev.Snapshot,
	})
	if err != nil {
		m.logger.Error("arena_move_persist_error", zap.String("game_id", ev.SessionID), zap.Int("ply", ev.Ply+1), zap.Error(err))
	}
}

// persistFinish records stops that did not come from a move.
func (m *Manager) persistFinish(ctx context.Context, ev FinishEvent) {
	ctx, cancel := persistContext(ctx)
	defer cancel()
	rec, err := m.store.Load(ctx, ev.SessionID)
	if err != nil {
		m.logger.Error("arena_finish_persist_error", zap.String("game_id", ev.SessionID), zap.Error(err))
		return
	}
	if rec.State == string(GameOver) && rec.Outcome == ev.Outcome {
		return
	}
	rec.State = string(GameOver)
	rec.Outcome = ev.Outcome
	rec.UpdatedAt = ev.EndedAt
	if err := m.store.Save(ctx, rec); err != nil {
		m.logger.Error("arena_finish_persist_error", zap.String("game_id", ev.SessionID), zap.Error(err))
	}
}
