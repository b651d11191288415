// Package dashboard serves the arena over HTTP: game control, state, rendered
// history and a websocket feed of moves as they land.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/obslog"
	"github.com/park285/chess-agent-arena/internal/results"
	"github.com/park285/chess-agent-arena/internal/session"
	"github.com/park285/chess-agent-arena/pkg/arenadto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	ErrMatchRunning = errors.New("a match is already running for this game")
	ErrGameOver     = errors.New("game is over; reset it first")
)

// PlayerFactory builds the player of one seat from its kind.
type PlayerFactory func(kind string, side movecheck.Side, seed uint64) (arena.Player, error)

// RandomOnly is the factory used when no LLM is configured.
func RandomOnly(kind string, side movecheck.Side, seed uint64) (arena.Player, error) {
	if kind != "" && kind != "random" {
		return nil, fmt.Errorf("player kind %q is not available", kind)
	}
	return arena.NewRandomPlayer("Agent "+side.Title(), side, seed), nil
}

type Options struct {
	Addr      string
	MaxTurns  int
	MaxNudges int
	BoardSize int
	Players   PlayerFactory
	Results   results.Repository
	Hub       *Hub
	Logger    *zap.Logger
	// InsecureOrigins disables the websocket origin check.
	InsecureOrigins bool
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Server struct {
	mgr    *session.Manager
	opts   Options
	hub    *Hub
	logger *zap.Logger
	mux    *http.ServeMux

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	running map[string]*run
	seq     uint64
}

// New builds the server. The manager's brokers should carry the hub's
// OnMove and OnFinish hooks for the live feed to see moves.
func New(mgr *session.Manager, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 5
	}
	if opts.BoardSize <= 0 {
		opts.BoardSize = 400
	}
	if opts.Players == nil {
		opts.Players = RandomOnly
	}
	logger := obslog.Or(opts.Logger)
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mgr:        mgr,
		opts:       opts,
		hub:        hub,
		logger:     logger,
		mux:        http.NewServeMux(),
		baseCtx:    ctx,
		baseCancel: cancel,
		running:    make(map[string]*run),
	}
	s.registerHandlers()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("POST /api/games", s.handleCreateGame)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	s.mux.HandleFunc("POST /api/games/{id}/reset", s.handleResetGame)
	s.mux.HandleFunc("GET /api/games/{id}/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/games/{id}/board.png", s.handleBoardPNG)
	s.mux.HandleFunc("GET /api/games/{id}/live", s.handleLive)
	s.mux.HandleFunc("GET /api/results", s.handleResults)
}

// Run serves until ctx is done, then shuts down and stops running matches.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.logger.Info("dashboard_listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	})
	return eg.Wait()
}

// Close cancels every running match and waits for them to stop.
func (s *Server) Close() {
	s.baseCancel()
	s.mu.Lock()
	runs := make([]*run, 0, len(s.running))
	for _, r := range s.running {
		runs = append(runs, r)
	}
	s.mu.Unlock()
	for _, r := range runs {
		<-r.done
	}
}

// Running reports whether a match is in progress for id.
func (s *Server) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

// Wait blocks until the match of id, if any, has stopped.
func (s *Server) Wait(id string) {
	s.mu.Lock()
	r := s.running[id]
	s.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListGames(w http.ResponseWriter, _ *http.Request) {
	ids := s.mgr.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, arenadto.GamesResponse{Games: ids})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req arenadto.CreateGameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	white, black, maxTurns, err := s.players(req.StartRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_players", err.Error())
		return
	}
	b, err := s.mgr.Create(r.Context(), arena.Describe(white), arena.Describe(black), req.FEN)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_position", err.Error())
		return
	}
	if err := s.startMatch(b, white, black, maxTurns); err != nil {
		if derr := s.mgr.Delete(context.WithoutCancel(r.Context()), b.ID()); derr != nil {
			s.logger.Warn("dashboard_game_discard_failed", zap.String("game_id", b.ID()), zap.Error(derr))
		}
		writeError(w, http.StatusConflict, "conflict", err.Error())
		return
	}
	state := stateDTO(b.View(), s.Running(b.ID()))
	writeJSON(w, http.StatusCreated, arenadto.CreateGameResponse{GameID: b.ID(), State: &state})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateDTO(b.View(), s.Running(b.ID())))
}

// handleResetGame stops a running match and resets the board. A body naming
// players starts a new match right away.
func (s *Server) handleResetGame(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	var req arenadto.StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	restart := req.White != "" || req.Black != ""
	var white, black arena.Player
	maxTurns := 0
	if restart {
		var err error
		white, black, maxTurns, err = s.players(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_players", err.Error())
			return
		}
	}

	s.stopMatch(b.ID())
	if restart {
		b.Do(func(gs *session.GameSession) {
			gs.White = arena.Describe(white)
			gs.Black = arena.Describe(black)
		})
	}
	b, err := s.mgr.Reset(r.Context(), b.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	if restart {
		if err := s.startMatch(b, white, black, maxTurns); err != nil {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
	}
	state := stateDTO(b.View(), s.Running(b.ID()))
	s.hub.Publish(arenadto.LiveEvent{Type: arenadto.EventReset, GameID: b.ID(), State: &state})
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	withSVG := r.URL.Query().Get("svg") != "0"
	items := b.History()
	out := arenadto.HistoryResponse{GameID: b.ID(), Snapshots: make([]arenadto.Snapshot, 0, len(items))}
	for _, it := range items {
		out.Snapshots = append(out.Snapshots, snapshotDTO(it, withSVG))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	size := s.opts.BoardSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 2048 {
			writeError(w, http.StatusBadRequest, "bad_size", "size must be between 64 and 2048")
			return
		}
		size = n
	}
	png, err := b.PNG(r.Context(), size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: s.opts.InsecureOrigins})
	if err != nil {
		s.logger.Warn("dashboard_ws_accept_failed", zap.String("game_id", b.ID()), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	sub := s.hub.Subscribe(b.ID())
	defer s.hub.Unsubscribe(sub)
	ctx := conn.CloseRead(r.Context())

	state := stateDTO(b.View(), s.Running(b.ID()))
	if err := writeFrame(ctx, conn, arenadto.LiveEvent{Type: arenadto.EventState, GameID: b.ID(), State: &state}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-s.baseCtx.Done():
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeFrame(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	out := arenadto.ResultsResponse{Results: []arenadto.GameResult{}}
	if s.opts.Results == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	recs, err := s.opts.Results.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "results_failed", err.Error())
		return
	}
	for _, rec := range recs {
		out.Results = append(out.Results, resultDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) broker(w http.ResponseWriter, r *http.Request) (*session.Broker, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	b, err := s.mgr.Get(r.Context(), id)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "game "+id+" not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return nil, false
	}
	return b, true
}

func (s *Server) players(req arenadto.StartRequest) (arena.Player, arena.Player, int, error) {
	maxTurns := req.MaxTurns
	if maxTurns == 0 {
		maxTurns = s.opts.MaxTurns
	}
	if maxTurns < 1 || maxTurns > 1000 {
		return nil, nil, 0, fmt.Errorf("max_turns must be between 1 and 1000, got %d", maxTurns)
	}
	seed := req.Seed
	if seed == 0 {
		s.mu.Lock()
		s.seq++
		seed = uint64(time.Now().UnixNano()) + s.seq
		s.mu.Unlock()
	}
	white, err := s.opts.Players(strings.ToLower(strings.TrimSpace(req.White)), movecheck.White, seed)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("white: %w", err)
	}
	black, err := s.opts.Players(strings.ToLower(strings.TrimSpace(req.Black)), movecheck.Black, seed+1)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("black: %w", err)
	}
	return white, black, maxTurns, nil
}

func (s *Server) startMatch(b *session.Broker, white, black arena.Player, maxTurns int) error {
	if b.State() == session.GameOver {
		return ErrGameOver
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[b.ID()]; busy {
		return ErrMatchRunning
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	s.running[b.ID()] = r

	m := &arena.Match{
		Broker:    b,
		White:     white,
		Black:     black,
		MaxTurns:  maxTurns,
		MaxNudges: s.opts.MaxNudges,
		Logger:    s.logger,
	}
	go func() {
		defer close(r.done)
		defer func() {
			cancel()
			s.mu.Lock()
			if s.running[b.ID()] == r {
				delete(s.running, b.ID())
			}
			s.mu.Unlock()
		}()
		if _, err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("dashboard_match_failed", zap.String("game_id", b.ID()), zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) stopMatch(id string) {
	s.mu.Lock()
	r := s.running[id]
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

func writeFrame(ctx context.Context, conn *websocket.Conn, ev arenadto.LiveEvent) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, ev)
}

// decodeBody accepts an empty body and leaves out untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, arenadto.APIError{Code: code, Message: msg, Retryable: status >= 500})
}
