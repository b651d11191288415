package arena

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/session"
)

func newBroker(t *testing.T, opts ...session.BrokerOption) *session.Broker {
	t.Helper()
	s, err := session.NewGameSession("arena-test",
		session.Player{Name: "White", Kind: "scripted"},
		session.Player{Name: "Black", Kind: "scripted"}, "")
	if err != nil {
		t.Fatalf("NewGameSession: %v", err)
	}
	return session.NewBroker(s, opts...)
}

func TestMatchFoolsMate(t *testing.T) {
	var finished []session.FinishEvent
	b := newBroker(t, session.WithFinishHook(func(_ context.Context, ev session.FinishEvent) {
		finished = append(finished, ev)
	}))
	m := &Match{
		Broker: b,
		White:  NewScriptedPlayer("White", movecheck.White, "f2f3", "g2g4"),
		Black:  NewScriptedPlayer("Black", movecheck.Black, "e7e5", "d8h4"),
	}
	rep, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Outcome.Result != movecheck.ResultBlack || rep.Outcome.Method != "checkmate" {
		t.Fatalf("unexpected outcome %+v", rep.Outcome)
	}
	if rep.Turns != 4 || len(rep.Transcript) != 4 {
		t.Fatalf("unexpected turns %d transcript %d", rep.Turns, len(rep.Transcript))
	}
	last := rep.Transcript[3]
	if last.Side != movecheck.Black || !last.Moved || !strings.HasSuffix(last.Text, "Checkmate! Black wins!") {
		t.Fatalf("unexpected last entry %+v", last)
	}
	if len(finished) != 1 {
		t.Fatalf("finish hook should fire once, got %d", len(finished))
	}
	if rep.Opening.ECO == "" {
		t.Fatalf("fool's mate line should be classified: %+v", rep.Opening)
	}
	if got := rep.Summary(nil); got != "4 moves played. Result: black (checkmate)." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestMatchNudgesThenStalls(t *testing.T) {
	b := newBroker(t)
	m := &Match{
		Broker:    b,
		White:     NewScriptedPlayer("White", movecheck.White, "e2e5"),
		Black:     NewScriptedPlayer("Black", movecheck.Black),
		MaxNudges: 1,
	}
	rep, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Transcript) != 2 {
		t.Fatalf("expected one reply and one nudged reply, got %+v", rep.Transcript)
	}
	if !strings.HasPrefix(rep.Transcript[0].Text, "Invalid move: e2e5.") || rep.Transcript[0].Moved {
		t.Fatalf("unexpected first entry %+v", rep.Transcript[0])
	}
	if rep.Outcome.Method != MethodStalled || rep.Outcome.Finished() {
		t.Fatalf("stalled game should have no result, got %+v", rep.Outcome)
	}
	if b.State() != session.GameOver {
		t.Fatalf("stalled game should be over, got %s", b.State())
	}
}

func TestMatchMaxTurnsDraw(t *testing.T) {
	b := newBroker(t)
	m := &Match{
		Broker:   b,
		White:    NewRandomPlayer("White", movecheck.White, 1),
		Black:    NewRandomPlayer("Black", movecheck.Black, 2),
		MaxTurns: 6,
	}
	rep, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.MovesUCI) != 6 {
		t.Fatalf("expected 6 plies, got %v", rep.MovesUCI)
	}
	if rep.Outcome.Result != movecheck.ResultDraw || rep.Outcome.Method != session.MethodMaxTurns {
		t.Fatalf("unexpected outcome %+v", rep.Outcome)
	}
}

func TestRandomMatchTerminates(t *testing.T) {
	b := newBroker(t)
	m := &Match{
		Broker: b,
		White:  NewRandomPlayer("White", movecheck.White, 7),
		Black:  NewRandomPlayer("Black", movecheck.Black, 11),
	}
	rep, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.State() != session.GameOver || rep.Outcome.Method == "" {
		t.Fatalf("match did not finish: %s %+v", b.State(), rep.Outcome)
	}
	if rep.Turns > DefaultMaxTurns {
		t.Fatalf("turn budget exceeded: %d", rep.Turns)
	}
	for _, e := range rep.Transcript {
		if !e.Moved {
			t.Fatalf("random player should always move: %+v", e)
		}
	}
}

func TestMatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newBroker(t)
	m := &Match{
		Broker: b,
		White:  NewRandomPlayer("White", movecheck.White, 1),
		Black:  NewRandomPlayer("Black", movecheck.Black, 1),
	}
	rep, err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if rep.Outcome.Method != session.MethodAborted || rep.Outcome.Finished() {
		t.Fatalf("unexpected outcome %+v", rep.Outcome)
	}
}

func TestMatchRejectsSwappedSeats(t *testing.T) {
	m := &Match{
		Broker: newBroker(t),
		White:  NewRandomPlayer("Black", movecheck.Black, 1),
		Black:  NewRandomPlayer("White", movecheck.White, 1),
	}
	if _, err := m.Run(context.Background()); !errors.Is(err, ErrColorMismatch) {
		t.Fatalf("expected color mismatch, got %v", err)
	}
}

func TestParseMoveList(t *testing.T) {
	got := ParseMoveList("Available moves are: e2e4, d2d4,g1f3")
	if len(got) != 3 || got[0] != "e2e4" || got[2] != "g1f3" {
		t.Fatalf("unexpected parse %v", got)
	}
	if got := ParseMoveList("Available moves are: "); len(got) != 0 {
		t.Fatalf("expected no moves, got %v", got)
	}
}

func TestInvokeToolMissing(t *testing.T) {
	_, err := InvokeTool(context.Background(), nil, session.ToolExecuteMove, nil)
	if !errors.Is(err, ErrToolMissing) {
		t.Fatalf("expected missing tool, got %v", err)
	}
}
