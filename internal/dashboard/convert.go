package dashboard

import (
	"github.com/park285/chess-agent-arena/internal/render"
	"github.com/park285/chess-agent-arena/internal/results"
	"github.com/park285/chess-agent-arena/internal/session"
	"github.com/park285/chess-agent-arena/pkg/arenadto"
)

func playerDTO(p session.Player) arenadto.PlayerInfo {
	return arenadto.PlayerInfo{Name: p.Name, Kind: p.Kind, Model: p.Model}
}

func stateDTO(v session.View, running bool) arenadto.GameState {
	legal := v.LegalMoves
	if legal == nil {
		legal = []string{}
	}
	return arenadto.GameState{
		ID:         v.ID,
		FEN:        v.FEN,
		State:      string(v.State),
		Ply:        v.Ply,
		Status:     v.Status,
		Result:     string(v.Outcome.Result),
		Method:     v.Outcome.Method,
		LegalMoves: legal,
		MovesUCI:   v.MovesUCI,
		MovesSAN:   v.MovesSAN,
		White:      playerDTO(v.White),
		Black:      playerDTO(v.Black),
		Running:    running,
		UpdatedAt:  v.UpdatedAt,
	}
}

func snapshotDTO(s render.Snapshot, withSVG bool) arenadto.Snapshot {
	out := arenadto.Snapshot{
		Ply:     s.Ply,
		Side:    s.Side,
		UCI:     s.UCI,
		SAN:     s.SAN,
		FEN:     s.FEN,
		Caption: s.Caption,
		At:      s.At,
	}
	if withSVG {
		out.SVG = s.SVG
	}
	return out
}

func resultDTO(r results.GameRecord) arenadto.GameResult {
	return arenadto.GameResult{
		GameID:    r.GameID,
		White:     arenadto.PlayerInfo{Name: r.WhiteName, Model: r.WhiteModel},
		Black:     arenadto.PlayerInfo{Name: r.BlackName, Model: r.BlackModel},
		Result:    r.Result,
		Method:    r.Method,
		MovesSAN:  r.MovesSAN,
		PGN:       r.PGN,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Duration:  r.Duration,
	}
}
