package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/session"
)

const fakeEngineEnv = "ENGINE_FAKE_UCI"

// TestMain doubles as a tiny UCI engine when the test binary is started by a Session.
func TestMain(m *testing.M) {
	if os.Getenv(fakeEngineEnv) == "1" {
		fakeUCI(os.Stdin, os.Stdout)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// fakeUCI answers the handshake and reports the first legal moves as its variations.
func fakeUCI(in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	var (
		fen     string
		moves   []string
		multipv = 1
	)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "uci":
			fmt.Fprintln(out, "id name fakefish")
			fmt.Fprintln(out, "uciok")
		case "isready":
			fmt.Fprintln(out, "readyok")
		case "setoption":
			if len(fields) == 5 && fields[2] == "MultiPV" {
				multipv, _ = strconv.Atoi(fields[4])
			}
		case "position":
			fen, moves = splitPosition(fields[1:])
		case "go":
			b, err := movecheck.Replay(fen, moves)
			if err != nil {
				fmt.Fprintln(out, "bestmove (none)")
				continue
			}
			legal := b.LegalMoves()
			fmt.Fprintln(out, "info string thinking")
			for i := 0; i < multipv && i < len(legal); i++ {
				fmt.Fprintf(out, "info depth 1 multipv %d score cp %d pv %s\n", i+1, 100-10*i, legal[i])
			}
			if len(legal) == 0 {
				fmt.Fprintln(out, "bestmove (none)")
			} else {
				fmt.Fprintf(out, "bestmove %s\n", legal[0])
			}
		case "quit":
			return
		}
	}
}

func splitPosition(fields []string) (string, []string) {
	var fen []string
	for i, f := range fields {
		if f == "moves" {
			return strings.Join(fen, " "), fields[i+1:]
		}
		if f != "fen" && f != "startpos" {
			fen = append(fen, f)
		}
	}
	return strings.Join(fen, " "), nil
}

func newFakePool(t *testing.T, capacity int) *Pool {
	t.Helper()
	t.Setenv(fakeEngineEnv, "1")
	pool, err := NewPool(PoolConfig{BinaryPath: os.Args[0], PerOptionCapacity: capacity})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func testLevel(t *testing.T, name string) Level {
	t.Helper()
	l, err := ParseLevel(name)
	if err != nil {
		t.Fatalf("ParseLevel(%q): %v", name, err)
	}
	return l
}

func TestParseInfo(t *testing.T) {
	idx, cand, ok := parseInfo("info depth 12 seldepth 16 multipv 2 score cp -35 nodes 1000 pv e7e5 g1f3 b8c6")
	if !ok || idx != 2 {
		t.Fatalf("unexpected parse ok=%v idx=%d", ok, idx)
	}
	if cand.Move != "e7e5" || cand.EvalCP != -35 || len(cand.Principal) != 3 {
		t.Fatalf("unexpected candidate %+v", cand)
	}

	_, cand, ok = parseInfo("info depth 20 score mate -3 pv h7h6")
	if !ok || cand.EvalCP != -mateScore {
		t.Fatalf("mate score not mapped: %+v", cand)
	}
	if _, _, ok := parseInfo("info depth 3 currmove e2e4 currmovenumber 1"); ok {
		t.Fatalf("line without pv should be ignored")
	}
}

func TestCollapseCandidatesOrdersByIndex(t *testing.T) {
	got := collapseCandidates(map[int]Candidate{3: {Move: "c"}, 1: {Move: "a"}, 2: {Move: "b"}})
	if len(got) != 3 || got[0].Move != "a" || got[2].Move != "c" {
		t.Fatalf("unexpected order %+v", got)
	}
	if collapseCandidates(nil) != nil {
		t.Fatalf("empty map should collapse to nil")
	}
}

func TestPositionCommand(t *testing.T) {
	if got := positionCommand("", []string{"e2e4", "e7e5"}); got != "position startpos moves e2e4 e7e5\n" {
		t.Fatalf("unexpected command %q", got)
	}
	if got := positionCommand(movecheck.StartFEN, nil); got != "position fen "+movecheck.StartFEN+"\n" {
		t.Fatalf("unexpected command %q", got)
	}
}

func TestLimits(t *testing.T) {
	tokens, err := Limits{Depth: 8, MoveTime: 150 * time.Millisecond}.goTokens()
	if err != nil {
		t.Fatalf("goTokens: %v", err)
	}
	if got := strings.Join(tokens, " "); got != "go depth 8 movetime 150" {
		t.Fatalf("unexpected go command %q", got)
	}
	if _, err := (Limits{}).goTokens(); !errors.Is(err, ErrNoLimits) {
		t.Fatalf("expected ErrNoLimits, got %v", err)
	}
	if got := (Limits{Depth: 1}).timeout(); got != 6*time.Second {
		t.Fatalf("shallow depth timeout: %v", got)
	}
	if got := (Limits{Depth: 100}).timeout(); got != 20*time.Second {
		t.Fatalf("deep depth timeout: %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"":             DefaultLevel,
		"3":            "level3",
		"Level7":       "level7",
		"beginner":     "level1",
		"master":       "level8",
		" advanced  ":  "level7",
		"intermediate": "level5",
	}
	for in, want := range cases {
		if got := testLevel(t, in); got.Name != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got.Name, want)
		}
	}
	if _, err := ParseLevel("level9"); err == nil {
		t.Fatalf("expected error for unknown level")
	}

	opt := testLevel(t, "level1").Options()
	if opt.MultiPV != 3 || opt.Threads != 1 || opt.validate() != nil {
		t.Fatalf("unexpected options %+v", opt)
	}
}

func TestLevelChoose(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	cands := []Candidate{{Move: "a"}, {Move: "b"}, {Move: "c"}}

	top := testLevel(t, "master")
	for range 20 {
		if got := top.choose(cands, "z", r); got != "a" {
			t.Fatalf("single-weight level should take the best line, got %s", got)
		}
	}
	if got := top.choose(nil, "z", r); got != "z" {
		t.Fatalf("no candidates should fall back to bestmove, got %s", got)
	}

	seen := map[string]bool{}
	low := testLevel(t, "level1")
	for range 200 {
		seen[low.choose(cands, "z", r)] = true
	}
	if len(seen) < 2 || seen["z"] {
		t.Fatalf("weighted pick should vary among candidates: %v", seen)
	}
}

func TestSessionSearch(t *testing.T) {
	t.Setenv(fakeEngineEnv, "1")
	ctx := context.Background()
	s, err := NewSession(ctx, os.Args[0], Options{HashMB: 16, MultiPV: 2}, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	resp, err := s.Search(ctx, SearchRequest{Moves: []string{"e2e4"}, Limits: Limits{Depth: 1}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Candidates) != 2 || resp.BestMove != resp.Candidates[0].Move {
		t.Fatalf("unexpected response %+v", resp)
	}
	b, _ := movecheck.Replay("", []string{"e2e4"})
	if !b.IsLegal(resp.BestMove) {
		t.Fatalf("bestmove %s is not a black reply", resp.BestMove)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewSessionRejectsBadOptions(t *testing.T) {
	if _, err := NewSession(context.Background(), os.Args[0], Options{HashMB: 16, MultiPV: 1, SkillLevel: 21}, nil); err == nil {
		t.Fatalf("expected skill level error")
	}
}

func TestNewPoolMissingBinary(t *testing.T) {
	if _, err := NewPool(PoolConfig{BinaryPath: "/nonexistent/stockfish"}); err == nil {
		t.Fatalf("expected binary check error")
	}
	if _, err := NewPool(PoolConfig{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestPoolReusesReleasedSessions(t *testing.T) {
	pool := newFakePool(t, 1)
	ctx := context.Background()
	opt := testLevel(t, "level2").Options()

	first, err := pool.Acquire(ctx, opt)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Release(first, nil)
	second, err := pool.Acquire(ctx, opt)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if second != first {
		t.Fatalf("released session should be reused")
	}

	pool.Release(second, errors.New("search failed"))
	third, err := pool.Acquire(ctx, opt)
	if err != nil {
		t.Fatalf("Acquire after discard: %v", err)
	}
	if third == second {
		t.Fatalf("failed session should not be reused")
	}
	pool.Release(third, nil)
}

func TestPoolWaitsAtCapacity(t *testing.T) {
	pool := newFakePool(t, 1)
	opt := testLevel(t, "level3").Options()

	held, err := pool.Acquire(context.Background(), opt)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx, opt); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while the only session is held, got %v", err)
	}
	pool.Release(held, nil)
}

func TestEnginePlaysMatch(t *testing.T) {
	pool := newFakePool(t, 2)
	s, err := session.NewGameSession("engine-match",
		session.Player{Name: "Engine", Kind: Kind},
		session.Player{Name: "Random", Kind: "random"}, "")
	if err != nil {
		t.Fatalf("NewGameSession: %v", err)
	}
	white := NewPlayer(pool, PlayerConfig{Name: "Engine", Color: movecheck.White, Level: testLevel(t, "level4"), Seed: 7})
	if d := white.Describe(); d.Kind != Kind || d.Model != "level4" {
		t.Fatalf("unexpected description %+v", d)
	}
	m := &arena.Match{
		Broker:   session.NewBroker(s),
		White:    white,
		Black:    arena.NewRandomPlayer("Random", movecheck.Black, 7),
		MaxTurns: 8,
	}
	rep, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Turns == 0 || len(rep.MovesUCI) != rep.Turns {
		t.Fatalf("every turn should be one move: turns=%d plies=%d", rep.Turns, len(rep.MovesUCI))
	}
	for _, e := range rep.Transcript {
		if !e.Moved {
			t.Fatalf("unexpected non-move entry %+v", e)
		}
	}
}
