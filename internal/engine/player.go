package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/session"
	"go.uber.org/zap"
)

const Kind = "stockfish"

var ErrNoMove = errors.New("engine returned no move")

type PlayerConfig struct {
	Name   string
	Color  movecheck.Side
	Level  Level
	Seed   uint64
	Logger *zap.Logger
}

// Player searches the position with a pooled engine and submits the chosen
// move through the execute_move tool, like any other seat.
type Player struct {
	pool *Pool
	cfg  PlayerConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPlayer(pool *Pool, cfg PlayerConfig) *Player {
	if cfg.Level.Name == "" {
		cfg.Level, _ = ParseLevel(DefaultLevel)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Player{
		pool: pool,
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5f3759df)),
	}
}

func (p *Player) Name() string          { return p.cfg.Name }
func (p *Player) Color() movecheck.Side { return p.cfg.Color }

func (p *Player) Describe() session.Player {
	return session.Player{Name: p.cfg.Name, Kind: Kind, Model: p.cfg.Level.Name}
}

func (p *Player) TakeTurn(ctx context.Context, in arena.TurnInput) (string, error) {
	move, err := p.BestMove(ctx, in.FEN)
	if err != nil {
		return "", err
	}
	p.cfg.Logger.Debug("engine_move",
		zap.String("player", p.cfg.Name),
		zap.String("level", p.cfg.Level.Name),
		zap.String("move", move),
		zap.Int("turn", in.Turn),
	)
	return arena.InvokeTool(ctx, in.Tools, session.ToolExecuteMove, map[string]string{"move": move})
}

// BestMove searches fen and picks a move according to the level's weights.
func (p *Player) BestMove(ctx context.Context, fen string) (move string, err error) {
	s, err := p.pool.Acquire(ctx, p.cfg.Level.Options())
	if err != nil {
		return "", fmt.Errorf("acquire engine: %w", err)
	}
	defer func() { p.pool.Release(s, err) }()

	if err = s.NewGame(ctx); err != nil {
		return "", err
	}
	resp, err := s.Search(ctx, SearchRequest{FEN: fen, Limits: p.cfg.Level.Limits()})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	move = p.cfg.Level.choose(resp.Candidates, resp.BestMove, p.rng)
	p.mu.Unlock()
	if move == "" || move == "(none)" {
		return "", ErrNoMove
	}
	return move, nil
}
