package session

import "github.com/park285/chess-agent-arena/internal/movecheck"

// TurnState is the position of the turn exchange.
type TurnState string

const (
	WaitingForWhite TurnState = "waiting_for_white"
	WaitingForBlack TurnState = "waiting_for_black"
	GameOver        TurnState = "game_over"
)

// WaitingFor returns the state in which side is expected to move.
func WaitingFor(side movecheck.Side) TurnState {
	if side == movecheck.Black {
		return WaitingForBlack
	}
	return WaitingForWhite
}

// Side reports whose move it is; ok is false once the game is over.
func (s TurnState) Side() (side movecheck.Side, ok bool) {
	switch s {
	case WaitingForWhite:
		return movecheck.White, true
	case WaitingForBlack:
		return movecheck.Black, true
	default:
		return "", false
	}
}

// ParseTurnState accepts the persisted form of a state.
func ParseTurnState(s string) (TurnState, bool) {
	switch TurnState(s) {
	case WaitingForWhite, WaitingForBlack, GameOver:
		return TurnState(s), true
	default:
		return "", false
	}
}

// TurnMachine tracks whose turn it is and carries the pending end-of-turn signal.
//
// The signal is raised by a successful move and consumed exactly once. A second
// move before consumption does not stack a second signal. The machine is not
// safe for concurrent use; Broker serializes access to it.
type TurnMachine struct {
	state   TurnState
	pending bool
}

// NewTurnMachine starts waiting for toMove.
func NewTurnMachine(toMove movecheck.Side) *TurnMachine {
	return &TurnMachine{state: WaitingFor(toMove)}
}

// restoreTurnMachine rebuilds a machine from persisted state; the signal is never restored.
func restoreTurnMachine(state TurnState) *TurnMachine {
	return &TurnMachine{state: state}
}

func (m *TurnMachine) State() TurnState { return m.state }

// Pending reports whether a signal is waiting to be consumed.
func (m *TurnMachine) Pending() bool { return m.pending }

// Advance feeds a validator result into the machine and reports whether a transition fired.
// Malformed and illegal results never transition and never raise the signal.
func (m *TurnMachine) Advance(res movecheck.Result) bool {
	if !res.Applied() || m.state == GameOver {
		return false
	}
	if res.Status.Terminal() {
		m.state = GameOver
	} else {
		m.state = WaitingFor(res.Color.Opponent())
	}
	m.pending = true
	return true
}

// Consume returns true once per raised signal and clears it.
func (m *TurnMachine) Consume() bool {
	if !m.pending {
		return false
	}
	m.pending = false
	return true
}

// Stop ends the exchange without a move, e.g. when the driver runs out of turns.
func (m *TurnMachine) Stop() {
	m.state = GameOver
}

// Reset returns the machine to the start of a game.
func (m *TurnMachine) Reset(toMove movecheck.Side) {
	m.state = WaitingFor(toMove)
	m.pending = false
}
