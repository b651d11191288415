// Package arena drives a game between two move-proposing players through the
// session broker, alternating turns and nudging a player that has not moved.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/session"
)

// TurnInput is what a player receives when it is asked to act.
type TurnInput struct {
	// Message is the latest message addressed to the player: the greeting, the
	// opponent's reply, or the nudge.
	Message string
	Tools   []session.Tool
	// FEN is the position the player is asked to move in.
	FEN     string
	Turn    int
	Attempt int
}

// Player proposes moves by calling the tools it is given.
type Player interface {
	Name() string
	Color() movecheck.Side
	TakeTurn(ctx context.Context, in TurnInput) (string, error)
}

// Describer is implemented by players that can report their kind and model.
type Describer interface {
	Describe() session.Player
}

// Describe returns the session description of p.
func Describe(p Player) session.Player {
	if d, ok := p.(Describer); ok {
		return d.Describe()
	}
	return session.Player{Name: p.Name()}
}

var ErrToolMissing = errors.New("tool not offered")

// InvokeTool calls the named tool from in.
func InvokeTool(ctx context.Context, tools []session.Tool, name string, args any) (string, error) {
	for _, t := range tools {
		if t.Name != name {
			continue
		}
		var raw json.RawMessage
		if args != nil {
			b, err := json.Marshal(args)
			if err != nil {
				return "", fmt.Errorf("encode %s arguments: %w", name, err)
			}
			raw = b
		}
		return t.Invoke(ctx, raw), nil
	}
	return "", fmt.Errorf("%w: %s", ErrToolMissing, name)
}

// ParseMoveList extracts the moves from an available_moves reply.
func ParseMoveList(text string) []string {
	if i := strings.Index(text, ":"); i >= 0 {
		text = text[i+1:]
	}
	var out []string
	for _, part := range strings.Split(text, ",") {
		if mv := strings.TrimSpace(part); mv != "" {
			out = append(out, mv)
		}
	}
	return out
}

// RandomPlayer lists the legal moves and plays one at random.
type RandomPlayer struct {
	name  string
	color movecheck.Side
	rng   *rand.Rand
}

// NewRandomPlayer is seeded so that matches can be replayed.
func NewRandomPlayer(name string, color movecheck.Side, seed uint64) *RandomPlayer {
	return &RandomPlayer{name: name, color: color, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPlayer) Name() string          { return p.name }
func (p *RandomPlayer) Color() movecheck.Side { return p.color }

func (p *RandomPlayer) Describe() session.Player {
	return session.Player{Name: p.name, Kind: "random"}
}

func (p *RandomPlayer) TakeTurn(ctx context.Context, in TurnInput) (string, error) {
	list, err := InvokeTool(ctx, in.Tools, session.ToolAvailableMoves, nil)
	if err != nil {
		return "", err
	}
	moves := ParseMoveList(list)
	if len(moves) == 0 {
		return list, nil
	}
	mv := moves[p.rng.IntN(len(moves))]
	return InvokeTool(ctx, in.Tools, session.ToolExecuteMove, map[string]string{"move": mv})
}

// ScriptedPlayer plays a fixed list of moves in order.
type ScriptedPlayer struct {
	name  string
	color movecheck.Side
	moves []string
	next  int
}

func NewScriptedPlayer(name string, color movecheck.Side, moves ...string) *ScriptedPlayer {
	return &ScriptedPlayer{name: name, color: color, moves: moves}
}

func (p *ScriptedPlayer) Name() string          { return p.name }
func (p *ScriptedPlayer) Color() movecheck.Side { return p.color }

func (p *ScriptedPlayer) Describe() session.Player {
	return session.Player{Name: p.name, Kind: "scripted"}
}

// TakeTurn plays the next scripted move; a rejected move is not retried.
func (p *ScriptedPlayer) TakeTurn(ctx context.Context, in TurnInput) (string, error) {
	if p.next >= len(p.moves) {
		return "I have no moves left.", nil
	}
	mv := p.moves[p.next]
	p.next++
	return InvokeTool(ctx, in.Tools, session.ToolExecuteMove, map[string]string{"move": mv})
}
