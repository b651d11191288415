package arena

import (
	"context"
	"errors"
	"time"

	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/results"
	"github.com/park285/chess-agent-arena/internal/session"
	"github.com/park285/chess-agent-arena/internal/settlement"
	"go.uber.org/zap"
)

// Recorder stores finished games and emits their settlement payloads. Failures
// are logged, never returned, so the end of a game cannot be blocked by them.
type Recorder struct {
	Results  results.Repository
	Contract *settlement.Contract
	Sink     settlement.Sink
	Logger   *zap.Logger
	// Timeout bounds each downstream call.
	Timeout time.Duration
}

// GameRecord converts a finish event to a results record.
func GameRecord(ev session.FinishEvent) results.GameRecord {
	return results.Normalize(results.GameRecord{
		GameID:     ev.SessionID,
		WhiteName:  ev.White.Name,
		WhiteModel: ev.White.Model,
		BlackName:  ev.Black.Name,
		BlackModel: ev.Black.Model,
		Result:     string(ev.Outcome.Result),
		Method:     ev.Outcome.Method,
		StartFEN:   ev.StartFEN,
		MovesUCI:   ev.MovesUCI,
		MovesSAN:   ev.MovesSAN,
		StartedAt:  ev.StartedAt,
		EndedAt:    ev.EndedAt,
	})
}

// OnFinish is a session.FinishHook.
func (r *Recorder) OnFinish(ctx context.Context, ev session.FinishEvent) {
	logger := obslog.Or(r.Logger).With(zap.String("game_id", ev.SessionID))
	ctx = context.WithoutCancel(ctx)
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if r.Results != nil {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := r.Results.SaveResult(cctx, GameRecord(ev))
		cancel()
		if err != nil {
			logger.Error("arena_result_save_failed", zap.Error(err))
		}
	}

	if r.Contract == nil || r.Sink == nil {
		return
	}
	payload, err := r.Contract.Build(ev.SessionID, ev.Outcome, ev.EndedAt)
	if errors.Is(err, settlement.ErrUnsettled) {
		logger.Info("arena_settlement_skipped", zap.String("method", ev.Outcome.Method))
		return
	}
	if err != nil {
		logger.Error("arena_settlement_build_failed", zap.Error(err))
		return
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.Sink.Publish(cctx, payload); err != nil {
		logger.Error("arena_settlement_publish_failed", zap.Error(err))
	}
}
