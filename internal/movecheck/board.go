package movecheck

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Board is the mutable game position owned by a single session.
// It is mutated only through Validator.ApplyMove and Reset.
type Board struct {
	game     *nchess.Game
	startFEN string
}

// NewBoard returns a board in the standard starting position.
func NewBoard() *Board {
	return &Board{game: nchess.NewGame(), startFEN: StartFEN}
}

// NewBoardFromFEN returns a board set up from a FEN string.
func NewBoardFromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return NewBoard(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Board{game: nchess.NewGame(opt), startFEN: fen}, nil
}

// Replay rebuilds a board from its starting FEN and the UCI moves applied since.
func Replay(fen string, moves []string) (*Board, error) {
	b, err := NewBoardFromFEN(fen)
	if err != nil {
		return nil, err
	}
	for i, mv := range moves {
		if err := b.game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, mv, err)
		}
	}
	return b, nil
}

// Reset returns the board to the standard starting position.
func (b *Board) Reset() {
	b.game = nchess.NewGame()
	b.startFEN = StartFEN
}

// FEN of the current position.
func (b *Board) FEN() string { return b.game.FEN() }

// StartingFEN is the position the board was created from.
func (b *Board) StartingFEN() string { return b.startFEN }

// Turn is the side to move.
func (b *Board) Turn() Side { return sideFrom(b.game.Position().Turn()) }

// Position exposes the rules-engine position for rendering.
func (b *Board) Position() *nchess.Position { return b.game.Position() }

// Ply is the number of moves applied since the starting position.
func (b *Board) Ply() int { return len(b.game.Moves()) }

// LastMove returns the most recently applied move, or nil.
func (b *Board) LastMove() *nchess.Move {
	moves := b.game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

// MovesUCI lists the applied moves in coordinate notation.
func (b *Board) MovesUCI() []string {
	moves := b.game.Moves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, strings.ToLower(mv.String()))
	}
	return out
}

// LegalMoves returns the legal-move set of the current position in coordinate notation.
func (b *Board) LegalMoves() []string {
	valid := b.game.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, strings.ToLower(mv.String()))
	}
	return out
}

// IsLegal reports whether uci is a member of the current legal-move set.
func (b *Board) IsLegal(uci string) bool {
	uci = strings.ToLower(strings.TrimSpace(uci))
	for _, mv := range b.LegalMoves() {
		if mv == uci {
			return true
		}
	}
	return false
}

// Status classifies the current position.
func (b *Board) Status() Status {
	return classify(b.game, nil)
}

// Outcome of the game so far; Result is ResultNone while the game continues.
func (b *Board) Outcome() Outcome {
	return outcomeOf(b.game)
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	return &Board{game: b.game.Clone(), startFEN: b.startFEN}
}
