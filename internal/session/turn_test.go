package session

import (
	"testing"

	"github.com/park285/chess-agent-arena/internal/movecheck"
)

func TestTurnMachineTransitions(t *testing.T) {
	cases := []struct {
		name    string
		start   TurnState
		res     movecheck.Result
		want    TurnState
		fired   bool
		pending bool
	}{
		{"white moves", WaitingForWhite, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.White}, WaitingForBlack, true, true},
		{"black moves", WaitingForBlack, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.Black}, WaitingForWhite, true, true},
		{"check keeps going", WaitingForWhite, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.White, Status: movecheck.StatusCheck}, WaitingForBlack, true, true},
		{"mate ends", WaitingForBlack, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.Black, Status: movecheck.StatusCheckmate}, GameOver, true, true},
		{"stalemate ends", WaitingForWhite, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.White, Status: movecheck.StatusStalemate}, GameOver, true, true},
		{"material ends", WaitingForWhite, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.White, Status: movecheck.StatusInsufficientMaterial}, GameOver, true, true},
		{"illegal stays", WaitingForWhite, movecheck.Result{Kind: movecheck.KindIllegal}, WaitingForWhite, false, false},
		{"malformed stays", WaitingForBlack, movecheck.Result{Kind: movecheck.KindMalformed}, WaitingForBlack, false, false},
		{"over is final", GameOver, movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.White}, GameOver, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := restoreTurnMachine(tc.start)
			if fired := m.Advance(tc.res); fired != tc.fired {
				t.Fatalf("fired=%v want %v", fired, tc.fired)
			}
			if m.State() != tc.want {
				t.Fatalf("state=%s want %s", m.State(), tc.want)
			}
			if m.Pending() != tc.pending {
				t.Fatalf("pending=%v want %v", m.Pending(), tc.pending)
			}
		})
	}
}

func TestTurnSignalDoesNotAccumulate(t *testing.T) {
	m := NewTurnMachine(movecheck.White)
	m.Advance(movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.White})
	m.Advance(movecheck.Result{Kind: movecheck.KindApplied, Color: movecheck.Black})
	if !m.Consume() {
		t.Fatalf("first consume should report the signal")
	}
	if m.Consume() {
		t.Fatalf("signals must not stack")
	}
}

func TestTurnStateHelpers(t *testing.T) {
	if side, ok := WaitingForBlack.Side(); !ok || side != movecheck.Black {
		t.Fatalf("unexpected side %v %v", side, ok)
	}
	if _, ok := GameOver.Side(); ok {
		t.Fatalf("game over has no side")
	}
	if _, ok := ParseTurnState("bogus"); ok {
		t.Fatalf("bogus state accepted")
	}
	m := NewTurnMachine(movecheck.Black)
	m.Stop()
	m.Reset(movecheck.White)
	if m.State() != WaitingForWhite || m.Pending() {
		t.Fatalf("reset failed: %s", m.State())
	}
}
