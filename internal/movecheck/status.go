package movecheck

import (
	nchess "github.com/corentings/chess/v2"
)

// Side identifies a player color.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Title is the capitalized side name used in user-facing text.
func (s Side) Title() string {
	if s == White {
		return "White"
	}
	return "Black"
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.White {
		return White
	}
	return Black
}

// Status classifies a position after a move.
type Status int

const (
	StatusOngoing Status = iota
	StatusCheck
	StatusCheckmate
	StatusStalemate
	StatusInsufficientMaterial
	// StatusDraw covers the remaining automatic draws of the rules engine
	// (fivefold repetition, seventy-five move rule).
	StatusDraw
)

func (s Status) String() string {
	switch s {
	case StatusCheck:
		return "check"
	case StatusCheckmate:
		return "checkmate"
	case StatusStalemate:
		return "stalemate"
	case StatusInsufficientMaterial:
		return "insufficient_material"
	case StatusDraw:
		return "draw"
	default:
		return "ongoing"
	}
}

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusInsufficientMaterial, StatusDraw:
		return true
	default:
		return false
	}
}

// GameResult is the final game result.
type GameResult string

const (
	ResultNone  GameResult = "none"
	ResultWhite GameResult = "white"
	ResultBlack GameResult = "black"
	ResultDraw  GameResult = "draw"
)

// Outcome is the value handed to settlement once a game ends.
type Outcome struct {
	Result GameResult `json:"result"`
	Method string     `json:"method"`
}

// Finished reports whether the outcome names a winner or a draw.
func (o Outcome) Finished() bool { return o.Result != ResultNone && o.Result != "" }

// Winner returns the winning side when there is one.
func (o Outcome) Winner() (Side, bool) {
	switch o.Result {
	case ResultWhite:
		return White, true
	case ResultBlack:
		return Black, true
	default:
		return "", false
	}
}

// classify applies the terminal-condition priority:
// checkmate > stalemate > insufficient material > other draw > check.
func classify(game *nchess.Game, applied *nchess.Move) Status {
	switch game.Method() {
	case nchess.Checkmate:
		return StatusCheckmate
	case nchess.Stalemate:
		return StatusStalemate
	case nchess.InsufficientMaterial:
		return StatusInsufficientMaterial
	}
	if game.Outcome() == nchess.Draw {
		return StatusDraw
	}
	// The engine records checkmate and stalemate on the position as well; a game
	// loaded from a terminal FEN may not have an outcome yet.
	switch game.Position().Status() {
	case nchess.Checkmate:
		return StatusCheckmate
	case nchess.Stalemate:
		return StatusStalemate
	}
	if applied != nil && applied.HasTag(nchess.Check) {
		return StatusCheck
	}
	if last := lastMove(game); last != nil && last.HasTag(nchess.Check) {
		return StatusCheck
	}
	return StatusOngoing
}

func outcomeOf(game *nchess.Game) Outcome {
	st := classify(game, nil)
	switch st {
	case StatusCheckmate:
		// the side to move is the one that got mated
		winner := sideFrom(game.Position().Turn()).Opponent()
		if winner == White {
			return Outcome{Result: ResultWhite, Method: st.String()}
		}
		return Outcome{Result: ResultBlack, Method: st.String()}
	case StatusStalemate, StatusInsufficientMaterial, StatusDraw:
		return Outcome{Result: ResultDraw, Method: st.String()}
	}
	return Outcome{Result: ResultNone}
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
