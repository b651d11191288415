package movecheck

import (
	nchess "github.com/corentings/chess/v2"
)

// PieceName is the capitalized English name of a piece type ("Pawn", "Knight", ...).
func PieceName(pt nchess.PieceType) string {
	switch pt {
	case nchess.King:
		return "King"
	case nchess.Queen:
		return "Queen"
	case nchess.Rook:
		return "Rook"
	case nchess.Bishop:
		return "Bishop"
	case nchess.Knight:
		return "Knight"
	case nchess.Pawn:
		return "Pawn"
	default:
		return "Piece"
	}
}

// PieceGlyph is the Unicode chess symbol for a colored piece.
func PieceGlyph(p nchess.Piece) string {
	white := p.Color() == nchess.White
	switch p.Type() {
	case nchess.King:
		return pick(white, "♔", "♚")
	case nchess.Queen:
		return pick(white, "♕", "♛")
	case nchess.Rook:
		return pick(white, "♖", "♜")
	case nchess.Bishop:
		return pick(white, "♗", "♝")
	case nchess.Knight:
		return pick(white, "♘", "♞")
	case nchess.Pawn:
		return pick(white, "♙", "♟")
	default:
		return "?"
	}
}

func pick(white bool, w, b string) string {
	if white {
		return w
	}
	return b
}
