// Package results stores finished games.
package results

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("game result not found")

// GameRecord is a finished game.
type GameRecord struct {
	GameID     string        `json:"game_id"`
	WhiteName  string        `json:"white_name"`
	WhiteModel string        `json:"white_model,omitempty"`
	BlackName  string        `json:"black_name"`
	BlackModel string        `json:"black_model,omitempty"`
	Result     string        `json:"result"` // white | black | draw | none
	Method     string        `json:"method"`
	StartFEN   string        `json:"start_fen,omitempty"`
	MovesUCI   []string      `json:"moves_uci"`
	MovesSAN   []string      `json:"moves_san"`
	PGN        string        `json:"pgn"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Duration   time.Duration `json:"duration"`
}

// Repository persists finished games.
type Repository interface {
	SaveResult(ctx context.Context, rec GameRecord) error
	Recent(ctx context.Context, limit int) ([]GameRecord, error)
	Get(ctx context.Context, gameID string) (*GameRecord, error)
	Close() error
}

// Normalize fills derived fields (PGN, duration) before saving.
func Normalize(rec GameRecord) GameRecord {
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.EndedAt
	}
	rec.Duration = rec.EndedAt.Sub(rec.StartedAt)
	if rec.Duration < 0 {
		rec.Duration = 0
	}
	if rec.PGN == "" {
		rec.PGN = BuildPGN(rec)
	}
	return rec
}
