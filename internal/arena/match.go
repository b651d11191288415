package arena

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/msgcat"
	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/session"
	"go.uber.org/zap"
)

const (
	DefaultMaxTurns  = 200
	DefaultMaxNudges = 3

	// MethodStalled ends a game whose player kept replying without moving.
	MethodStalled = "stalled"
)

var ErrColorMismatch = errors.New("player color does not match seat")

// Entry is one line of the match transcript.
type Entry struct {
	Turn    int            `json:"turn"`
	Side    movecheck.Side `json:"side"`
	Speaker string         `json:"speaker"`
	Text    string         `json:"text"`
	Moved   bool           `json:"moved"`
	At      time.Time      `json:"at"`
}

// Report summarizes a finished match.
type Report struct {
	GameID     string            `json:"game_id"`
	Outcome    movecheck.Outcome `json:"outcome"`
	Turns      int               `json:"turns"`
	MovesUCI   []string          `json:"moves_uci"`
	MovesSAN   []string          `json:"moves_san"`
	FinalFEN   string            `json:"final_fen"`
	Opening    movecheck.Opening `json:"opening"`
	Transcript []Entry           `json:"transcript"`
	Duration   time.Duration     `json:"duration"`
}

// Summary is the one-line human readable result.
func (r *Report) Summary(msgs *msgcat.Catalog) string {
	if msgs == nil {
		msgs = msgcat.Default()
	}
	n := strconv.Itoa(len(r.MovesUCI))
	return msgs.RenderOr("arena.summary", map[string]string{
		"Moves":  n,
		"Result": string(r.Outcome.Result),
		"Method": r.Outcome.Method,
	}, n+" moves played. Result: "+string(r.Outcome.Result)+" ("+r.Outcome.Method+").")
}

// Match alternates two players over one broker.
type Match struct {
	Broker *session.Broker
	White  Player
	Black  Player

	// MaxTurns bounds the number of turns handed out, moves or not.
	MaxTurns int
	// MaxNudges is how many times a player is reminded to move within one turn.
	MaxNudges int
	Catalog   *msgcat.Catalog
	Logger    *zap.Logger
	// OnEntry observes the transcript as it grows.
	OnEntry func(Entry)

	now func() time.Time
}

func (m *Match) defaults() error {
	if m.Broker == nil || m.White == nil || m.Black == nil {
		return errors.New("match needs a broker and two players")
	}
	if m.White.Color() != movecheck.White {
		return fmt.Errorf("%w: %s plays %s", ErrColorMismatch, m.White.Name(), m.White.Color())
	}
	if m.Black.Color() != movecheck.Black {
		return fmt.Errorf("%w: %s plays %s", ErrColorMismatch, m.Black.Name(), m.Black.Color())
	}
	if m.MaxTurns <= 0 {
		m.MaxTurns = DefaultMaxTurns
	}
	if m.MaxNudges < 0 {
		m.MaxNudges = 0
	}
	if m.Catalog == nil {
		m.Catalog = msgcat.Default()
	}
	m.Logger = obslog.Or(m.Logger)
	if m.now == nil {
		m.now = time.Now
	}
	return nil
}

// Run plays until the game ends, the turn budget is spent, a player stalls, or
// ctx is canceled. A canceled match is stopped as aborted and returns ctx.Err().
func (m *Match) Run(ctx context.Context) (*Report, error) {
	if err := m.defaults(); err != nil {
		return nil, err
	}
	started := m.now()
	rep := &Report{GameID: m.Broker.ID()}

	message := m.Catalog.RenderOr("arena.greeting", nil, "Let's play chess! You go first, it's your move.")
	method := ""
	var runErr error

	for rep.Turns < m.MaxTurns {
		state := m.Broker.State()
		if state == session.GameOver {
			break
		}
		if err := ctx.Err(); err != nil {
			method, runErr = session.MethodAborted, err
			break
		}
		player := m.White
		if side, _ := state.Side(); side == movecheck.Black {
			player = m.Black
		}
		rep.Turns++

		reply, moved, err := m.turn(ctx, rep, player, message)
		if err != nil {
			method, runErr = session.MethodAborted, err
			break
		}
		if !moved {
			method = MethodStalled
			m.Logger.Warn("arena_player_stalled",
				zap.String("game_id", rep.GameID),
				zap.String("player", player.Name()),
				zap.Int("nudges", m.MaxNudges),
			)
			break
		}
		message = reply
	}

	if method == "" && m.Broker.State() != session.GameOver {
		method = session.MethodMaxTurns
	}
	if method != "" {
		// ctx may already be done; the stop still has to reach the finish hooks.
		m.Broker.Stop(context.WithoutCancel(ctx), method)
	}

	m.Broker.Do(func(s *session.GameSession) {
		rep.Outcome = s.Outcome
		rep.MovesUCI = s.Board.MovesUCI()
		rep.MovesSAN = append([]string(nil), s.MovesSAN...)
		rep.FinalFEN = s.Board.FEN()
		rep.Opening, _ = s.Board.Opening()
	})
	rep.Duration = m.now().Sub(started)

	m.Logger.Info("arena_match_done",
		zap.String("game_id", rep.GameID),
		zap.String("result", string(rep.Outcome.Result)),
		zap.String("method", rep.Outcome.Method),
		zap.Int("turns", rep.Turns),
		zap.Int("plies", len(rep.MovesUCI)),
		zap.Duration("duration", rep.Duration),
	)
	return rep, runErr
}

// turn asks player to move, nudging it up to MaxNudges times.
func (m *Match) turn(ctx context.Context, rep *Report, player Player, message string) (string, bool, error) {
	tools := m.Broker.ToolsFor(player.Color())
	for attempt := 0; attempt <= m.MaxNudges; attempt++ {
		reply, err := player.TakeTurn(ctx, TurnInput{
			Message: message,
			Tools:   tools,
			FEN:     m.Broker.View().FEN,
			Turn:    rep.Turns,
			Attempt: attempt,
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		if err != nil {
			m.Logger.Warn("arena_player_error",
				zap.String("game_id", rep.GameID),
				zap.String("player", player.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			reply = err.Error()
		}
		moved := m.Broker.IsTurnOver(reply)
		m.record(rep, Entry{
			Turn:    rep.Turns,
			Side:    player.Color(),
			Speaker: player.Name(),
			Text:    reply,
			Moved:   moved,
			At:      m.now(),
		})
		if moved {
			return reply, true, nil
		}
		if m.Broker.State() == session.GameOver {
			return reply, true, nil
		}
		message = m.Broker.DefaultNudge()
	}
	return "", false, nil
}

func (m *Match) record(rep *Report, e Entry) {
	rep.Transcript = append(rep.Transcript, e)
	if m.OnEntry != nil {
		m.OnEntry(e)
	}
}
