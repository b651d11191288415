// Package session owns a single game: the board, the turn exchange between two
// agents, and the rendered move history.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/render"
	"github.com/park285/chess-agent-arena/internal/sessionstore"
)

// Player describes one side of a game.
type Player struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"` // random | scripted | openai | anthropic | stockfish
	Model string `json:"model,omitempty"`
}

// GameSession is the explicit state of one game. It is handed to the broker by
// reference and never read from package globals.
type GameSession struct {
	ID        string
	Board     *movecheck.Board
	Turns     *TurnMachine
	History   render.History
	MovesSAN  []string
	White     Player
	Black     Player
	Outcome   movecheck.Outcome
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGameSession starts a game from fen (empty for the standard position).
// An empty id gets a generated one.
func NewGameSession(id string, white, black Player, fen string) (*GameSession, error) {
	board, err := movecheck.NewBoardFromFEN(fen)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		id = NewID()
	}
	now := time.Now()
	s := &GameSession{
		ID:        id,
		Board:     board,
		Turns:     NewTurnMachine(board.Turn()),
		White:     white,
		Black:     black,
		Outcome:   movecheck.Outcome{Result: movecheck.ResultNone},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if o := board.Outcome(); o.Finished() {
		s.Outcome = o
		s.Turns.Stop()
	}
	return s, nil
}

// NewID returns a fresh session id.
func NewID() string { return "game-" + uuid.NewString() }

// PlayerFor returns the player of side.
func (s *GameSession) PlayerFor(side movecheck.Side) Player {
	if side == movecheck.Black {
		return s.Black
	}
	return s.White
}

// Reset returns the board to the standard starting position and clears history.
func (s *GameSession) Reset() {
	s.Board.Reset()
	s.Turns.Reset(s.Board.Turn())
	s.History = render.History{}
	s.MovesSAN = nil
	s.Outcome = movecheck.Outcome{Result: movecheck.ResultNone}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
}

// Record converts the session to its persisted form.
func (s *GameSession) Record() *sessionstore.Record {
	san := make([]string, len(s.MovesSAN))
	copy(san, s.MovesSAN)
	return &sessionstore.Record{
		ID:        s.ID,
		StartFEN:  s.Board.StartingFEN(),
		FEN:       s.Board.FEN(),
		MovesUCI:  s.Board.MovesUCI(),
		MovesSAN:  san,
		State:     string(s.Turns.State()),
		White:     sessionstore.Player(s.White),
		Black:     sessionstore.Player(s.Black),
		Outcome:   s.Outcome,
		History:   s.History.Items(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// FromRecord rebuilds a session by replaying the recorded moves.
func FromRecord(rec *sessionstore.Record) (*GameSession, error) {
	board, err := movecheck.Replay(rec.StartFEN, rec.MovesUCI)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", rec.ID, err)
	}
	state, ok := ParseTurnState(rec.State)
	if !ok {
		state = WaitingFor(board.Turn())
	}
	if rec.Outcome.Finished() {
		state = GameOver
	}
	s := &GameSession{
		ID:        rec.ID,
		Board:     board,
		Turns:     restoreTurnMachine(state),
		MovesSAN:  append([]string(nil), rec.MovesSAN...),
		White:     Player(rec.White),
		Black:     Player(rec.Black),
		Outcome:   rec.Outcome,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	for _, snap := range rec.History {
		s.History.Append(snap)
	}
	return s, nil
}
