package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/msgcat"
	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/render"
	"go.uber.org/zap"
)

// MoveEvent is emitted after every applied move.
type MoveEvent struct {
	SessionID   string
	Ply         int // ply before the move
	Result      movecheck.Result
	State       TurnState
	FEN         string
	Snapshot    render.Snapshot
	SessionView View
}

// FinishEvent is emitted once when a game reaches GameOver.
type FinishEvent struct {
	SessionID string
	White     Player
	Black     Player
	Outcome   movecheck.Outcome
	MovesUCI  []string
	MovesSAN  []string
	StartFEN  string
	FinalFEN  string
	StartedAt time.Time
	EndedAt   time.Time
}

// MoveHook observes applied moves. Hooks run under the broker lock and must not call back into it.
type MoveHook func(ctx context.Context, ev MoveEvent)

// FinishHook observes the end of a game.
type FinishHook func(ctx context.Context, ev FinishEvent)

// Broker mediates between the agents and the validator for one session.
type Broker struct {
	mu        sync.Mutex
	s         *GameSession
	validator *movecheck.Validator
	renderer  render.Renderer
	msgs      *msgcat.Catalog
	logger    *zap.Logger
	onMove    []MoveHook
	onFinish  []FinishHook
	finished  bool
	now       func() time.Time
}

type BrokerOption func(*Broker)

func WithCatalog(c *msgcat.Catalog) BrokerOption {
	return func(b *Broker) {
		if c != nil {
			b.msgs = c
		}
	}
}

func WithRenderer(r render.Renderer) BrokerOption {
	return func(b *Broker) {
		if r != nil {
			b.renderer = r
		}
	}
}

func WithLogger(l *zap.Logger) BrokerOption {
	return func(b *Broker) { b.logger = l }
}

func WithMoveHook(h MoveHook) BrokerOption {
	return func(b *Broker) {
		if h != nil {
			b.onMove = append(b.onMove, h)
		}
	}
}

func WithFinishHook(h FinishHook) BrokerOption {
	return func(b *Broker) {
		if h != nil {
			b.onFinish = append(b.onFinish, h)
		}
	}
}

// NewBroker wraps s.
func NewBroker(s *GameSession, opts ...BrokerOption) *Broker {
	b := &Broker{
		s:        s,
		renderer: render.New(),
		msgs:     msgcat.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = obslog.Or(b.logger)
	b.validator = movecheck.NewValidator(b.msgs)
	b.finished = s.Turns.State() == GameOver
	return b
}

// ID of the brokered session.
func (b *Broker) ID() string { return b.s.ID }

// ListLegalMoves enumerates the legal moves of the current position.
func (b *Broker) ListLegalMoves(_ context.Context) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validator.ListLegalMoves(b.s.Board)
}

// ApplyMove validates and applies move, returning the agent-facing description.
func (b *Broker) ApplyMove(ctx context.Context, move string) string {
	return b.Apply(ctx, move).Description
}

// Apply is ApplyMove with the full validator result.
func (b *Broker) Apply(ctx context.Context, move string) movecheck.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applyLocked(ctx, move)
}

// ApplyFor applies move on behalf of side and rejects it, board unchanged, when
// side is not the one to move.
func (b *Broker) ApplyFor(ctx context.Context, side movecheck.Side, move string) movecheck.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.s.Turns.State()
	if state != GameOver && state != WaitingFor(side) {
		toMove, _ := state.Side()
		b.logger.Debug("arena_move_out_of_turn",
			zap.String("game_id", b.s.ID),
			zap.String("side", string(side)),
			zap.String("input", move),
		)
		return movecheck.Result{
			Kind:  movecheck.KindIllegal,
			Input: move,
			Description: b.msgs.RenderOr("broker.not_your_turn", map[string]string{"Side": toMove.Title()},
				"It is not your turn. "+toMove.Title()+" is to move; wait for your opponent."),
			Status:  b.s.Board.Status(),
			Outcome: b.s.Outcome,
		}
	}
	return b.applyLocked(ctx, move)
}

func (b *Broker) applyLocked(ctx context.Context, move string) movecheck.Result {
	if b.s.Turns.State() == GameOver {
		return movecheck.Result{
			Kind:        movecheck.KindIllegal,
			Input:       move,
			Description: b.msgs.RenderOr("broker.game_over", nil, "The game is already over. No further moves are accepted."),
			Status:      b.s.Board.Status(),
			Outcome:     b.s.Outcome,
		}
	}

	ply := b.s.Board.Ply()
	res := b.validator.ApplyMove(b.s.Board, move)
	if !res.Applied() {
		b.logger.Debug("arena_move_rejected",
			zap.String("game_id", b.s.ID),
			zap.String("input", move),
			zap.String("kind", res.Kind.String()),
		)
		return res
	}

	b.s.Turns.Advance(res)
	b.s.MovesSAN = append(b.s.MovesSAN, res.SAN)
	b.s.UpdatedAt = b.now()
	if res.Outcome.Finished() {
		b.s.Outcome = res.Outcome
	}
	snap := b.snapshot(res, ply+1)
	b.s.History.Append(snap)

	b.logger.Info("arena_move",
		zap.String("game_id", b.s.ID),
		zap.Int("ply", ply+1),
		zap.String("side", string(res.Color)),
		zap.String("uci", res.UCI),
		zap.String("san", res.SAN),
		zap.String("status", res.Status.String()),
		zap.String("state", string(b.s.Turns.State())),
	)

	ev := MoveEvent{
		SessionID:   b.s.ID,
		Ply:         ply,
		Result:      res,
		State:       b.s.Turns.State(),
		FEN:         b.s.Board.FEN(),
		Snapshot:    snap,
		SessionView: b.viewLocked(),
	}
	for _, h := range b.onMove {
		h(ctx, ev)
	}
	if b.s.Turns.State() == GameOver {
		b.finishLocked(ctx)
	}
	return res
}

// IsTurnOver is the termination predicate of the conversation driver. It ignores
// message and consumes the pending end-of-turn signal.
func (b *Broker) IsTurnOver(_ string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s.Turns.Consume()
}

// DefaultNudge is the reply given to an agent that has not moved yet.
func (b *Broker) DefaultNudge() string {
	return b.msgs.RenderOr("broker.nudge", nil, "Please make a move.")
}

// State returns the turn state.
func (b *Broker) State() TurnState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s.Turns.State()
}

const (
	MethodMaxTurns = "max_turns"
	MethodAborted  = "aborted"
)

// Stop ends the game without a move. Running out of turns is adjudicated a draw;
// any other method leaves the result open. A game already decided on the board keeps its outcome.
func (b *Broker) Stop(ctx context.Context, method string) movecheck.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return b.s.Outcome
	}
	b.s.Turns.Stop()
	if !b.s.Outcome.Finished() {
		result := movecheck.ResultNone
		if method == MethodMaxTurns {
			result = movecheck.ResultDraw
		}
		b.s.Outcome = movecheck.Outcome{Result: result, Method: method}
	}
	b.s.UpdatedAt = b.now()
	b.finishLocked(ctx)
	return b.s.Outcome
}

// Reset starts a new game in the same session.
func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.Reset()
	b.finished = false
	b.logger.Info("arena_reset", zap.String("game_id", b.s.ID))
}

// Do runs fn with exclusive access to the session.
func (b *Broker) Do(fn func(s *GameSession)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.s)
}

func (b *Broker) finishLocked(ctx context.Context) {
	if b.finished {
		return
	}
	b.finished = true
	ev := FinishEvent{
		SessionID: b.s.ID,
		White:     b.s.White,
		Black:     b.s.Black,
		Outcome:   b.s.Outcome,
		MovesUCI:  b.s.Board.MovesUCI(),
		MovesSAN:  append([]string(nil), b.s.MovesSAN...),
		StartFEN:  b.s.Board.StartingFEN(),
		FinalFEN:  b.s.Board.FEN(),
		StartedAt: b.s.CreatedAt,
		EndedAt:   b.now(),
	}
	b.logger.Info("arena_game_over",
		zap.String("game_id", ev.SessionID),
		zap.String("result", string(ev.Outcome.Result)),
		zap.String("method", ev.Outcome.Method),
		zap.Int("plies", len(ev.MovesUCI)),
	)
	for _, h := range b.onFinish {
		h(ctx, ev)
	}
}

func (b *Broker) snapshot(res movecheck.Result, ply int) render.Snapshot {
	caption := b.msgs.RenderOr("arena.history_caption", map[string]any{
		"Number": ply,
		"Side":   res.Color.Title(),
	}, "Move "+strconv.Itoa(ply)+" by Agent "+res.Color.Title())
	svg := b.renderer.SVG(b.s.Board.Position().Board(), render.Options{
		LastMove:    render.HighlightFor(b.s.Board.LastMove()),
		Coordinates: true,
		Title:       caption,
	})
	return render.Snapshot{
		Ply:     ply,
		Side:    string(res.Color),
		UCI:     res.UCI,
		SAN:     res.SAN,
		FEN:     b.s.Board.FEN(),
		Caption: caption,
		SVG:     string(svg),
		At:      b.now(),
	}
}
