package agentllm

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/session"
)

// fakeLLM serves queued responses and records the requests it saw.
type fakeLLM struct {
	mu       sync.Mutex
	replies  []func(ctx *fasthttp.RequestCtx)
	requests []ChatRequest
	auth     []string
}

func (f *fakeLLM) handle(ctx *fasthttp.RequestCtx) {
	f.mu.Lock()
	var req ChatRequest
	_ = json.Unmarshal(ctx.PostBody(), &req)
	f.requests = append(f.requests, req)
	f.auth = append(f.auth, string(ctx.Request.Header.Peek("Authorization")))
	var next func(ctx *fasthttp.RequestCtx)
	if len(f.replies) > 0 {
		next, f.replies = f.replies[0], f.replies[1:]
	}
	f.mu.Unlock()

	if next == nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	next(ctx)
}

func jsonReply(t *testing.T, resp ChatResponse) func(ctx *fasthttp.RequestCtx) {
	t.Helper()
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	}
}

func statusReply(code int) func(ctx *fasthttp.RequestCtx) {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(code)
		ctx.SetBodyString(`{"error":"busy"}`)
	}
}

func toolCallReply(t *testing.T, id, name, args string) func(ctx *fasthttp.RequestCtx) {
	return jsonReply(t, ChatResponse{Choices: []Choice{{
		Message: Message{Role: "assistant", ToolCalls: []ToolCall{{
			ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: args},
		}}},
		FinishReason: "tool_calls",
	}}})
}

func startFake(t *testing.T, f *fakeLLM) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: f.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewClient("http://llm.test/v1/", "sk-test",
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
		WithTimeout(2*time.Second),
	)
}

func newBroker(t *testing.T) *session.Broker {
	t.Helper()
	s, err := session.NewGameSession("llm-test", session.Player{Name: "Agent White"}, session.Player{Name: "Agent Black"}, "")
	require.NoError(t, err)
	return session.NewBroker(s)
}

func TestPlayerToolLoop(t *testing.T) {
	f := &fakeLLM{}
	f.replies = append(f.replies,
		toolCallReply(t, "call_1", session.ToolAvailableMoves, "{}"),
		toolCallReply(t, "call_2", session.ToolExecuteMove, `{"move":"e2e4"}`),
	)
	client := startFake(t, f)
	b := newBroker(t)

	p := NewPlayer(client, PlayerConfig{
		Color:        movecheck.White,
		Provider:     ProviderOpenAI,
		Model:        DefaultOpenAIModel,
		SystemPrompt: "You play white.",
	})
	reply, err := p.TakeTurn(context.Background(), arena.TurnInput{Message: "Your move.", Tools: b.Tools()})
	require.NoError(t, err)
	assert.Equal(t, "Moved white Pawn (♙) from e2 to e4.", reply)
	assert.True(t, b.IsTurnOver(reply))
	assert.Equal(t, session.WaitingForBlack, b.State())

	require.Len(t, f.requests, 2)
	first := f.requests[0]
	assert.Equal(t, DefaultOpenAIModel, first.Model)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, "system", first.Messages[0].Role)
	assert.Equal(t, "Your move.", first.Messages[1].Content)
	require.Len(t, first.Tools, 2)
	assert.Equal(t, session.ToolAvailableMoves, first.Tools[0].Function.Name)
	assert.Equal(t, "Bearer sk-test", f.auth[0])

	second := f.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Available moves are: ")
	assert.Equal(t, "Agent White", p.Name())
	assert.Equal(t, "openai", p.Describe().Kind)
}

// scriptedCompleter answers every request with the next queued message.
type scriptedCompleter struct {
	replies []Message
	calls   int
}

func (s *scriptedCompleter) ChatCompletion(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	msg := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	return &ChatResponse{Choices: []Choice{{Message: msg}}}, nil
}

func TestPlayerStopsAfterFirstMove(t *testing.T) {
	llm := &scriptedCompleter{replies: []Message{{
		Role: "assistant",
		ToolCalls: []ToolCall{
			{ID: "call_1", Type: "function", Function: FunctionCall{Name: session.ToolExecuteMove, Arguments: `{"move":"e2e4"}`}},
			{ID: "call_2", Type: "function", Function: FunctionCall{Name: session.ToolExecuteMove, Arguments: `{"move":"e7e5"}`}},
		},
	}}}
	b := newBroker(t)

	p := NewPlayer(llm, PlayerConfig{Color: movecheck.White, Model: "m"})
	reply, err := p.TakeTurn(context.Background(), arena.TurnInput{Message: "Your move.", Tools: b.Tools()})
	require.NoError(t, err)
	assert.Equal(t, "Moved white Pawn (♙) from e2 to e4.", reply)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, []string{"e2e4"}, b.View().MovesUCI)
	assert.Equal(t, session.WaitingForBlack, b.State())

	last := p.history[len(p.history)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_2", last.ToolCallID)
	assert.Equal(t, turnOverReply, last.Content)
}

func TestPlayerCannotMoveForOpponent(t *testing.T) {
	llm := &scriptedCompleter{replies: []Message{{
		Role: "assistant",
		ToolCalls: []ToolCall{
			{ID: "call_1", Type: "function", Function: FunctionCall{Name: session.ToolExecuteMove, Arguments: `{"move":"e7e5"}`}},
		},
	}}}
	b := newBroker(t)

	p := NewPlayer(llm, PlayerConfig{Color: movecheck.Black, Model: "m"})
	reply, err := p.TakeTurn(context.Background(), arena.TurnInput{Message: "Your move.", Tools: b.ToolsFor(movecheck.Black)})
	require.NoError(t, err)
	assert.Contains(t, reply, "It is not your turn. White is to move")
	assert.Empty(t, b.View().MovesUCI)
	assert.False(t, b.IsTurnOver(reply))
}

func TestPlayerPlainReplyDoesNotMove(t *testing.T) {
	f := &fakeLLM{}
	f.replies = append(f.replies, jsonReply(t, ChatResponse{Choices: []Choice{{
		Message: Message{Role: "assistant", Content: "Let me think about it."},
	}}}))
	client := startFake(t, f)
	b := newBroker(t)

	p := NewPlayer(client, PlayerConfig{Color: movecheck.White, Model: "m"})
	reply, err := p.TakeTurn(context.Background(), arena.TurnInput{Message: "Your move.", Tools: b.Tools()})
	require.NoError(t, err)
	assert.Equal(t, "Let me think about it.", reply)
	assert.False(t, b.IsTurnOver(reply))
}

func TestPlayerUnknownTool(t *testing.T) {
	f := &fakeLLM{}
	f.replies = append(f.replies,
		toolCallReply(t, "call_1", "resign", "{}"),
		toolCallReply(t, "call_2", session.ToolExecuteMove, `"g1f3"`),
	)
	client := startFake(t, f)
	b := newBroker(t)

	p := NewPlayer(client, PlayerConfig{Color: movecheck.White, Model: "m"})
	reply, err := p.TakeTurn(context.Background(), arena.TurnInput{Message: "go", Tools: b.Tools()})
	require.NoError(t, err)
	assert.Contains(t, reply, "Knight")
	second := f.requests[1]
	assert.Equal(t, "Unknown tool: resign. Available tools are: available_moves, execute_move.",
		second.Messages[len(second.Messages)-1].Content)
}

func TestClientRetriesServerErrors(t *testing.T) {
	f := &fakeLLM{}
	f.replies = append(f.replies,
		statusReply(fasthttp.StatusServiceUnavailable),
		jsonReply(t, ChatResponse{ID: "ok", Choices: []Choice{{Message: Message{Role: "assistant", Content: "hi"}}}}),
	)
	client := startFake(t, f)

	resp, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ID)
	assert.Len(t, f.requests, 2)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	f := &fakeLLM{}
	f.replies = append(f.replies, statusReply(fasthttp.StatusUnauthorized))
	client := startFake(t, f)

	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fasthttp.StatusUnauthorized, apiErr.Status)
	assert.Len(t, f.requests, 1)
}

func TestClientNoChoices(t *testing.T) {
	f := &fakeLLM{}
	f.replies = append(f.replies, jsonReply(t, ChatResponse{ID: "empty"}))
	client := startFake(t, f)

	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestEndpointDefaults(t *testing.T) {
	e := Endpoint{Provider: ProviderAnthropic}.Resolve()
	assert.Equal(t, DefaultAnthropicBaseURL, e.BaseURL)
	assert.Equal(t, DefaultAnthropicModel, e.Model)

	e = Endpoint{Model: "gpt-4o"}.Resolve()
	assert.Equal(t, ProviderOpenAI, e.Provider)
	assert.Equal(t, DefaultOpenAIBaseURL, e.BaseURL)
	assert.Equal(t, "gpt-4o", e.Model)

	p, err := ParseProvider(" Anthropic ")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p)
	_, err = ParseProvider("random")
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(1))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(3))
	assert.Equal(t, backoffDuration(6), backoffDuration(10))
	assert.True(t, shouldRetryStatus(502))
	assert.False(t, shouldRetryStatus(400))
}

func TestCountTokens(t *testing.T) {
	short := countTokens([]Message{{Role: "user", Content: "e2e4"}})
	long := countTokens([]Message{{Role: "user", Content: "Let's play chess! You go first, it's your move. Please think carefully."}})
	assert.Greater(t, short, perMessageTokens)
	assert.Greater(t, long, short)
	assert.Equal(t, 2*perMessageTokens, countTokens([]Message{{Role: "user"}, {Role: "assistant"}}))
}

func TestTrimKeepsLatestTurnWithinBudget(t *testing.T) {
	p := NewPlayer(nil, PlayerConfig{Color: movecheck.White, MaxHistoryTokens: 40})
	for i := 0; i < 5; i++ {
		p.history = append(p.history,
			Message{Role: "user", Content: "Please make a move, the clock is running and your opponent is waiting."},
			Message{Role: "assistant", ToolCalls: []ToolCall{{ID: "c", Type: "function", Function: FunctionCall{Name: "available_moves", Arguments: "{}"}}}},
			Message{Role: "tool", ToolCallID: "c", Content: "Available moves are: e2e4,d2d4,g1f3,b1c3,c2c4"},
		)
	}
	p.trim()
	require.NotEmpty(t, p.history)
	assert.Equal(t, "user", p.history[0].Role)
	assert.Len(t, p.history, 3, "only the latest turn fits the budget")

	p.cfg.MaxHistoryTokens = DefaultMaxHistoryTokens
	p.history = append(p.history, Message{Role: "user", Content: "Your move."})
	p.trim()
	assert.Len(t, p.history, 4)
}
