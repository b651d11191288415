package agentllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/session"
	"go.uber.org/zap"
)

const (
	DefaultMaxToolRounds    = 6
	DefaultMaxHistoryTokens = 8000
	maxHistory              = 60

	turnOverReply = "Your turn is over; this call was not run. Wait for your opponent's move."
)

// Completer is the part of Client the player needs.
type Completer interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// PlayerConfig configures an LLM-backed player.
type PlayerConfig struct {
	Name         string
	Color        movecheck.Side
	Provider     Provider
	Model        string
	SystemPrompt string
	// MaxToolRounds bounds the completions requested in one turn.
	MaxToolRounds int
	// MaxHistoryTokens bounds the replayed conversation, system prompt excluded.
	MaxHistoryTokens int
	Temperature      *float64
	Logger           *zap.Logger
}

// Player keeps its own conversation and moves by calling the broker tools.
type Player struct {
	cfg     PlayerConfig
	llm     Completer
	logger  *zap.Logger
	history []Message
}

func NewPlayer(llm Completer, cfg PlayerConfig) *Player {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.MaxHistoryTokens <= 0 {
		cfg.MaxHistoryTokens = DefaultMaxHistoryTokens
	}
	if cfg.Name == "" {
		cfg.Name = "Agent " + cfg.Color.Title()
	}
	return &Player{cfg: cfg, llm: llm, logger: obslog.Or(cfg.Logger)}
}

func (p *Player) Name() string          { return p.cfg.Name }
func (p *Player) Color() movecheck.Side { return p.cfg.Color }

func (p *Player) Describe() session.Player {
	return session.Player{Name: p.cfg.Name, Kind: string(p.cfg.Provider), Model: p.cfg.Model}
}

// TakeTurn appends the incoming message to the conversation and runs completions,
// executing requested tools, until execute_move has been called, the model answers
// without tools, or the round budget is spent. The returned text is the last tool
// result or the model's own reply.
func (p *Player) TakeTurn(ctx context.Context, in arena.TurnInput) (string, error) {
	p.history = append(p.history, Message{Role: "user", Content: in.Message})
	specs := toolSpecs(in.Tools)

	reply := ""
	for round := 0; round < p.cfg.MaxToolRounds; round++ {
		resp, err := p.llm.ChatCompletion(ctx, ChatRequest{
			Model:       p.cfg.Model,
			Messages:    p.messages(),
			Tools:       specs,
			Temperature: p.cfg.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("%s completion: %w", p.cfg.Name, err)
		}
		msg := resp.Choices[0].Message
		msg.Role = "assistant"
		p.history = append(p.history, msg)

		if len(msg.ToolCalls) == 0 {
			reply = msg.Content
			break
		}

		// Calls after the first execute_move belong to a turn that has ended and are
		// answered without running them.
		moved := false
		for _, call := range msg.ToolCalls {
			if moved {
				p.history = append(p.history, Message{Role: "tool", ToolCallID: call.ID, Name: call.Function.Name, Content: turnOverReply})
				p.logger.Debug("arena_tool_call_skipped",
					zap.String("player", p.cfg.Name),
					zap.String("tool", call.Function.Name),
					zap.String("args", call.Function.Arguments),
				)
				continue
			}
			result := p.invoke(ctx, in.Tools, call)
			p.history = append(p.history, Message{Role: "tool", ToolCallID: call.ID, Name: call.Function.Name, Content: result})
			p.logger.Debug("arena_tool_call",
				zap.String("player", p.cfg.Name),
				zap.String("tool", call.Function.Name),
				zap.String("args", call.Function.Arguments),
				zap.String("result", result),
			)
			reply = result
			if call.Function.Name == session.ToolExecuteMove {
				moved = true
			}
		}
		if moved {
			break
		}
	}
	p.trim()
	return reply, nil
}

func (p *Player) invoke(ctx context.Context, tools []session.Tool, call ToolCall) string {
	for _, t := range tools {
		if t.Name == call.Function.Name {
			return t.Invoke(ctx, json.RawMessage(call.Function.Arguments))
		}
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return "Unknown tool: " + call.Function.Name + ". Available tools are: " + strings.Join(names, ", ") + "."
}

func (p *Player) messages() []Message {
	out := make([]Message, 0, len(p.history)+1)
	if p.cfg.SystemPrompt != "" {
		out = append(out, Message{Role: "system", Content: p.cfg.SystemPrompt})
	}
	return append(out, p.history...)
}

// trim drops the oldest turns until the history fits both the message cap and
// the token budget. The latest user turn is always kept and the history always
// starts at a user message.
func (p *Player) trim() {
	lastUser := -1
	for i := len(p.history) - 1; i >= 0; i-- {
		if p.history[i].Role == "user" {
			lastUser = i
			break
		}
	}
	if lastUser < 0 {
		return
	}
	cut := min(max(len(p.history)-maxHistory, 0), lastUser)
	for cut < lastUser && countTokens(p.history[cut:]) > p.cfg.MaxHistoryTokens {
		cut++
	}
	for cut < lastUser && p.history[cut].Role != "user" {
		cut++
	}
	if cut > 0 {
		p.history = append([]Message(nil), p.history[cut:]...)
	}
}

func toolSpecs(tools []session.Tool) []ToolSpec {
	out := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolSpec{
			Type: "function",
			Function: FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
