package dashboard

import (
	"context"
	"sync"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/session"
	"github.com/park285/chess-agent-arena/pkg/arenadto"
	"go.uber.org/zap"
)

const subscriberBuffer = 32

// Subscriber receives the live events of one game.
type Subscriber struct {
	gameID string
	C      chan arenadto.LiveEvent
}

// Hub fans live events out to websocket subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{}), logger: obslog.Or(logger)}
}

func (h *Hub) Subscribe(gameID string) *Subscriber {
	sub := &Subscriber{gameID: gameID, C: make(chan arenadto.LiveEvent, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[gameID]
	if set == nil {
		set = make(map[*Subscriber]struct{})
		h.subs[gameID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.gameID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.gameID)
	}
	close(sub.C)
}

// Count reports the subscribers of gameID.
func (h *Hub) Count(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

func (h *Hub) Publish(ev arenadto.LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.GameID] {
		select {
		case sub.C <- ev:
		default:
			h.logger.Debug("dashboard_live_dropped",
				zap.String("game_id", ev.GameID),
				zap.String("type", ev.Type),
			)
		}
	}
}

// OnMove is a session.MoveHook.
func (h *Hub) OnMove(_ context.Context, ev session.MoveEvent) {
	snap := snapshotDTO(ev.Snapshot, true)
	state := stateDTO(ev.SessionView, false)
	h.Publish(arenadto.LiveEvent{Type: arenadto.EventMove, GameID: ev.SessionID, Snapshot: &snap, State: &state})
}

// OnFinish is a session.FinishHook.
func (h *Hub) OnFinish(_ context.Context, ev session.FinishEvent) {
	state := arenadto.GameState{
		ID:       ev.SessionID,
		FEN:      ev.FinalFEN,
		State:    string(session.GameOver),
		Ply:      len(ev.MovesUCI),
		Status:   ev.Outcome.Method,
		Result:   string(ev.Outcome.Result),
		Method:   ev.Outcome.Method,
		MovesUCI: ev.MovesUCI,
		MovesSAN: ev.MovesSAN,
		White:    playerDTO(ev.White),
		Black:    playerDTO(ev.Black),
	}
	if state.Result == "" {
		state.Result = string(movecheck.ResultNone)
	}
	h.Publish(arenadto.LiveEvent{Type: arenadto.EventFinish, GameID: ev.SessionID, State: &state})
}
