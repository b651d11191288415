package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/chess-agent-arena/internal/agentllm"
	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/config"
	"github.com/park285/chess-agent-arena/internal/engine"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/msgcat"
	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/results"
	"github.com/park285/chess-agent-arena/internal/session"
	"github.com/park285/chess-agent-arena/internal/sessionstore"
	"github.com/park285/chess-agent-arena/internal/settlement"
	"go.uber.org/zap"
)

// app holds the process-wide dependencies built from the configuration.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	msgs     *msgcat.Catalog
	store    sessionstore.Store
	results  results.Repository
	contract *settlement.Contract
	sink     settlement.Sink
	recorder *arena.Recorder

	engineMu sync.Mutex
	engines  *engine.Pool
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{cfg: cfg, logger: obslog.L()}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	a.msgs = msgs

	if cfg.RedisURL != "" {
		rs, err := sessionstore.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.store = rs.WithTTL(cfg.SessionTTL)
	} else {
		a.store = sessionstore.NewMemoryStore()
	}

	if cfg.DatabaseURL != "" {
		repo, err := results.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("results repository: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			a.Close()
			return nil, fmt.Errorf("results schema: %w", err)
		}
		a.results = repo
	} else if cfg.ResultsDB != "" {
		repo, err := results.NewSQLiteRepository(ctx, cfg.ResultsDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("results repository: %w", err)
		}
		a.results = repo
	} else {
		a.results = results.NewMemoryRepository()
	}

	if err := a.buildSettlement(); err != nil {
		a.Close()
		return nil, err
	}
	a.recorder = &arena.Recorder{
		Results:  a.results,
		Contract: a.contract,
		Sink:     a.sink,
		Logger:   a.logger,
	}
	return a, nil
}

// buildContract loads the contract file when configured, with SETTLEMENT_ADDRESS
// overriding its address; otherwise the built-in abi is used.
func (a *app) buildContract() error {
	var (
		contract *settlement.Contract
		err      error
	)
	if a.cfg.SettlementContract != "" {
		contract, err = settlement.LoadContract(a.cfg.SettlementContract)
		if err == nil && a.cfg.SettlementAddress != "" {
			var override *settlement.Contract
			override, err = settlement.NewContract("", a.cfg.SettlementAddress)
			if err == nil {
				contract.Address = override.Address
			}
		}
	} else {
		contract, err = settlement.NewContract("", a.cfg.SettlementAddress)
	}
	if err != nil {
		return fmt.Errorf("settlement contract: %w", err)
	}
	a.contract = contract
	return nil
}

func (a *app) buildSettlement() error {
	if err := a.buildContract(); err != nil {
		return err
	}
	sinks := settlement.MultiSink{settlement.NewLogSink(a.logger)}
	if a.cfg.AMQPURL != "" {
		amqpSink, err := settlement.NewAMQPSink(settlement.AMQPConfig{URL: a.cfg.AMQPURL, Queue: a.cfg.AMQPQueue})
		if err != nil {
			return fmt.Errorf("settlement sink: %w", err)
		}
		sinks = append(sinks, amqpSink)
	}
	a.sink = sinks
	return nil
}

// manager builds the session manager with persistence and the finish pipeline wired in.
func (a *app) manager(extra ...session.BrokerOption) *session.Manager {
	opts := []session.BrokerOption{
		session.WithCatalog(a.msgs),
		session.WithLogger(a.logger),
		session.WithFinishHook(a.recorder.OnFinish),
	}
	return session.NewManager(a.store, a.logger, append(opts, extra...)...)
}

// player builds the player of one seat. An empty kind uses the configured seat.
func (a *app) player(kind string, side movecheck.Side, seed uint64) (arena.Player, error) {
	seat := a.cfg.White
	if side == movecheck.Black {
		seat = a.cfg.Black
	}
	if kind != "" {
		k, err := config.ParseSeatKind(kind)
		if err != nil {
			return nil, err
		}
		seat = k
	}
	name := "Agent " + side.Title()

	switch seat {
	case config.SeatRandom:
		return arena.NewRandomPlayer(name, side, seed), nil
	case config.SeatOpenAI, config.SeatAnthropic:
		llm := a.cfg.LLM(seat)
		if llm.APIKey == "" {
			return nil, fmt.Errorf("%s player needs an api key", seat)
		}
		endpoint := agentllm.Endpoint{
			Provider: agentllm.Provider(seat),
			BaseURL:  llm.BaseURL,
			Model:    llm.Model,
			APIKey:   llm.APIKey,
		}.Resolve()
		client := agentllm.NewClientFor(endpoint, agentllm.WithTimeout(a.cfg.LLMTimeout))
		prompt := a.msgs.RenderOr("arena.system_prompt", map[string]string{"Color": string(side)},
			"You are a professional chess player and you play as "+string(side)+".")
		return agentllm.NewPlayer(client, agentllm.PlayerConfig{
			Name:         name,
			Color:        side,
			Provider:     endpoint.Provider,
			Model:        endpoint.Model,
			SystemPrompt: prompt,
			Logger:       a.logger,
		}), nil
	case config.SeatStockfish:
		level, err := engine.ParseLevel(a.cfg.StockfishLevel)
		if err != nil {
			return nil, err
		}
		pool, err := a.enginePool()
		if err != nil {
			return nil, err
		}
		return engine.NewPlayer(pool, engine.PlayerConfig{
			Name:   name,
			Color:  side,
			Level:  level,
			Seed:   seed,
			Logger: a.logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown player kind %q", seat)
	}
}

// enginePool starts the engine pool on first use so runs without an engine
// seat never look for the binary.
func (a *app) enginePool() (*engine.Pool, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engines != nil {
		return a.engines, nil
	}
	pool, err := engine.NewPool(engine.PoolConfig{BinaryPath: a.cfg.StockfishPath, Logger: a.logger})
	if err != nil {
		return nil, fmt.Errorf("stockfish: %w", err)
	}
	a.engines = pool
	return pool, nil
}

func (a *app) Close() {
	var errs []error
	a.engineMu.Lock()
	if a.engines != nil {
		errs = append(errs, a.engines.Close())
	}
	a.engineMu.Unlock()
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	if a.results != nil {
		errs = append(errs, a.results.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("arena_close_failed", zap.Error(err))
	}
}
