package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/park285/chess-agent-arena/internal/movecheck"
)

const (
	ToolAvailableMoves = "available_moves"
	ToolExecuteMove    = "execute_move"
)

// Tool is a named, described function offered to an agent.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments object.
	Parameters json.RawMessage
	Invoke     func(ctx context.Context, args json.RawMessage) string
}

type executeMoveArgs struct {
	Move string `json:"move"`
}

// Tools returns the two fixed tools bound to this broker. Their execute_move
// plays for whichever side is to move.
func (b *Broker) Tools() []Tool {
	return b.tools(func(ctx context.Context, move string) string {
		return b.ApplyMove(ctx, move)
	})
}

// ToolsFor returns the tools of one seat: execute_move only accepts a move while
// side is to move.
func (b *Broker) ToolsFor(side movecheck.Side) []Tool {
	return b.tools(func(ctx context.Context, move string) string {
		return b.ApplyFor(ctx, side, move).Description
	})
}

func (b *Broker) tools(apply func(ctx context.Context, move string) string) []Tool {
	return []Tool{
		{
			Name:        ToolAvailableMoves,
			Description: b.msgs.RenderOr("tools.available_moves", nil, "Get legal moves."),
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
			Invoke: func(ctx context.Context, _ json.RawMessage) string {
				return b.ListLegalMoves(ctx)
			},
		},
		{
			Name:        ToolExecuteMove,
			Description: b.msgs.RenderOr("tools.execute_move", nil, "Call this tool to make a move."),
			Parameters:  b.executeMoveSchema(),
			Invoke: func(ctx context.Context, args json.RawMessage) string {
				var in executeMoveArgs
				if err := decodeArgs(args, &in); err != nil {
					return b.msgs.RenderOr("broker.bad_arguments", map[string]string{
						"Name":  ToolExecuteMove,
						"Error": err.Error(),
					}, "Could not read arguments for "+ToolExecuteMove+": "+err.Error())
				}
				return apply(ctx, in.Move)
			},
		},
	}
}

// Call dispatches a tool call by name. Unknown names are answered with text so
// the agent can correct itself.
func (b *Broker) Call(ctx context.Context, name string, args json.RawMessage) string {
	tools := b.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t.Name == name {
			return t.Invoke(ctx, args)
		}
		names = append(names, t.Name)
	}
	list := strings.Join(names, ", ")
	return b.msgs.RenderOr("broker.unknown_tool", map[string]string{"Name": name, "Tools": list},
		"Unknown tool: "+name+". Available tools are: "+list+".")
}

func (b *Broker) executeMoveSchema() json.RawMessage {
	desc := b.msgs.RenderOr("tools.execute_move_param", nil, "The move in UCI format, for example e2e4 or e7e8q.")
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"move": map[string]any{"type": "string", "description": desc},
		},
		"required": []string{"move"},
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// decodeArgs accepts an object, a JSON-encoded object string, or a bare move string.
func decodeArgs(args json.RawMessage, out *executeMoveArgs) error {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return err
		}
		inner = strings.TrimSpace(inner)
		if strings.HasPrefix(inner, "{") {
			return json.Unmarshal([]byte(inner), out)
		}
		out.Move = inner
		return nil
	}
	return json.Unmarshal([]byte(trimmed), out)
}
