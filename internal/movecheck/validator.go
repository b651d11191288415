// Package movecheck validates coordinate-notation moves against the rules engine,
// applies legal ones, and describes the resulting position.
package movecheck

import (
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-agent-arena/internal/msgcat"
)

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Kind tells how an ApplyMove call ended.
type Kind int

const (
	KindApplied Kind = iota
	KindMalformed
	KindIllegal
)

func (k Kind) String() string {
	switch k {
	case KindApplied:
		return "applied"
	case KindMalformed:
		return "malformed"
	case KindIllegal:
		return "illegal"
	default:
		return "unknown"
	}
}

// Result describes one ApplyMove call.
type Result struct {
	Kind        Kind
	Input       string
	UCI         string
	SAN         string
	Piece       string // e.g. "Pawn"
	Glyph       string
	Color       Side
	From        string
	To          string
	Status      Status
	Outcome     Outcome
	Description string
}

// Applied reports whether the board was mutated.
func (r Result) Applied() bool { return r.Kind == KindApplied }

// Validator turns move text into board transitions and agent-facing descriptions.
type Validator struct {
	msgs *msgcat.Catalog
}

// NewValidator builds a validator; a nil catalog uses the embedded messages.
func NewValidator(msgs *msgcat.Catalog) *Validator {
	if msgs == nil {
		msgs = msgcat.Default()
	}
	return &Validator{msgs: msgs}
}

// ListLegalMoves enumerates the legal moves, comma separated. It never mutates the board.
func (v *Validator) ListLegalMoves(b *Board) string {
	moves := strings.Join(b.LegalMoves(), ",")
	return v.msgs.RenderOr("moves.available", map[string]string{"Moves": moves}, "Available moves are: "+moves)
}

// ParseUCI normalizes and syntax-checks coordinate notation.
func ParseUCI(text string) (string, bool) {
	uci := strings.ToLower(strings.TrimSpace(text))
	if !uciPattern.MatchString(uci) {
		return uci, false
	}
	return uci, true
}

// ApplyMove validates moveText and, when legal, applies it to b.
// Malformed and illegal moves leave b untouched and are reported in the description.
func (v *Validator) ApplyMove(b *Board, moveText string) Result {
	res := Result{Input: moveText}
	uci, ok := ParseUCI(moveText)
	if !ok {
		res.Kind = KindMalformed
		res.Description = v.msgs.RenderOr("moves.invalid_format", map[string]string{"Move": moveText},
			"Invalid move format: "+moveText+". Please use UCI format (e.g., 'e2e4').")
		return res
	}
	res.UCI = uci

	pos := b.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		res.Kind = KindMalformed
		res.Description = v.msgs.RenderOr("moves.invalid_format", map[string]string{"Move": moveText},
			"Invalid move format: "+moveText+". Please use UCI format (e.g., 'e2e4').")
		return res
	}
	if !b.IsLegal(uci) {
		res.Kind = KindIllegal
		res.Description = v.illegal(moveText)
		return res
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := b.game.Move(mv, nil); err != nil {
		res.Kind = KindIllegal
		res.Description = v.illegal(moveText)
		return res
	}

	res.Kind = KindApplied
	res.SAN = san
	res.From = mv.S1().String()
	res.To = mv.S2().String()

	after := b.game.Position()
	piece := after.Board().Piece(mv.S2())
	res.Piece = PieceName(piece.Type())
	res.Glyph = PieceGlyph(piece)
	res.Color = sideFrom(piece.Color())
	res.Status = classify(b.game, mv)
	res.Outcome = outcomeOf(b.game)
	res.Description = v.describe(res)
	return res
}

func (v *Validator) illegal(moveText string) string {
	return v.msgs.RenderOr("moves.illegal", map[string]string{"Move": moveText},
		"Invalid move: "+moveText+". Please call available_moves() to see valid moves.")
}

func (v *Validator) describe(res Result) string {
	name := string(res.Color) + " " + res.Piece
	text := v.msgs.RenderOr("moves.moved", map[string]string{
		"Piece": name,
		"Glyph": res.Glyph,
		"From":  res.From,
		"To":    res.To,
	}, "Moved "+name+" ("+res.Glyph+") from "+res.From+" to "+res.To+".")
	if clause := v.statusClause(res); clause != "" {
		text += "\n" + clause
	}
	return text
}

// statusClause picks at most one clause; the mover is the winner on checkmate
// because the side to move after the push is the mated one.
func (v *Validator) statusClause(res Result) string {
	switch res.Status {
	case StatusCheckmate:
		winner := res.Color.Title()
		if w, ok := res.Outcome.Winner(); ok {
			winner = w.Title()
		}
		return v.msgs.RenderOr("status.checkmate", map[string]string{"Winner": winner}, "Checkmate! "+winner+" wins!")
	case StatusStalemate:
		return v.msgs.RenderOr("status.stalemate", nil, "Game ended in stalemate!")
	case StatusInsufficientMaterial:
		return v.msgs.RenderOr("status.insufficient_material", nil, "Game ended - insufficient material to checkmate!")
	case StatusDraw:
		return v.msgs.RenderOr("status.draw", nil, "Game ended in a draw!")
	case StatusCheck:
		return v.msgs.RenderOr("status.check", nil, "Check!")
	default:
		return ""
	}
}
