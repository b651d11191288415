// Package sessionstore persists game sessions so they survive process restarts
// and can be inspected by the dashboard.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/render"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrStalePly = errors.New("session changed concurrently")
	ErrFinished = errors.New("session already finished")
)

// DefaultTTL bounds how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// Player describes one side of a session.
type Player struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Model string `json:"model,omitempty"`
}

// Record is the persisted state of a game session.
type Record struct {
	ID        string            `json:"id"`
	StartFEN  string            `json:"start_fen"`
	FEN       string            `json:"fen"`
	MovesUCI  []string          `json:"moves_uci"`
	MovesSAN  []string          `json:"moves_san"`
	State     string            `json:"state"`
	White     Player            `json:"white"`
	Black     Player            `json:"black"`
	Outcome   movecheck.Outcome `json:"outcome"`
	History   []render.Snapshot `json:"history"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Ply is the number of moves recorded.
func (r *Record) Ply() int { return len(r.MovesUCI) }

// MoveEntry is one applied move appended by AppendMove.
type MoveEntry struct {
	UCI      string            `json:"uci"`
	SAN      string            `json:"san"`
	FEN      string            `json:"fen"`
	State    string            `json:"state"`
	Outcome  movecheck.Outcome `json:"outcome"`
	Snapshot render.Snapshot   `json:"snapshot"`
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// AppendMove adds e to the session only if it still holds expectedPly moves.
	AppendMove(ctx context.Context, id string, expectedPly int, e MoveEntry) (*Record, error)
	Close() error
}

func apply(rec *Record, e MoveEntry, now time.Time) {
	rec.MovesUCI = append(rec.MovesUCI, e.UCI)
	rec.MovesSAN = append(rec.MovesSAN, e.SAN)
	rec.FEN = e.FEN
	rec.State = e.State
	rec.Outcome = e.Outcome
	rec.History = append(rec.History, e.Snapshot)
	rec.UpdatedAt = now
}

func finished(rec *Record) bool { return rec.Outcome.Finished() }
