package session

import (
	"context"
	"time"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/render"
)

// View is a read-only copy of a session's state.
type View struct {
	ID         string            `json:"id"`
	FEN        string            `json:"fen"`
	State      TurnState         `json:"state"`
	Ply        int               `json:"ply"`
	Status     string            `json:"status"`
	Outcome    movecheck.Outcome `json:"outcome"`
	LegalMoves []string          `json:"legal_moves"`
	MovesUCI   []string          `json:"moves_uci"`
	MovesSAN   []string          `json:"moves_san"`
	White      Player            `json:"white"`
	Black      Player            `json:"black"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// View copies the current state.
func (b *Broker) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Broker) viewLocked() View {
	v := View{
		ID:        b.s.ID,
		FEN:       b.s.Board.FEN(),
		State:     b.s.Turns.State(),
		Ply:       b.s.Board.Ply(),
		Status:    b.s.Board.Status().String(),
		Outcome:   b.s.Outcome,
		MovesUCI:  b.s.Board.MovesUCI(),
		MovesSAN:  append([]string(nil), b.s.MovesSAN...),
		White:     b.s.White,
		Black:     b.s.Black,
		UpdatedAt: b.s.UpdatedAt,
	}
	if v.State != GameOver {
		v.LegalMoves = b.s.Board.LegalMoves()
	}
	return v
}

// History returns the rendered snapshots in move order.
func (b *Broker) History() []render.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s.History.Items()
}

// PNG renders the current position; the lock is held only while copying the board.
func (b *Broker) PNG(ctx context.Context, size int) ([]byte, error) {
	b.mu.Lock()
	board := b.s.Board.Clone()
	b.mu.Unlock()
	return b.renderer.PNG(ctx, board.Position().Board(), render.Options{
		Size:        size,
		LastMove:    render.HighlightFor(board.LastMove()),
		Coordinates: true,
	})
}
