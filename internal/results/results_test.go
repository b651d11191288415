package results

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
	nchess "github.com/corentings/chess/v2"
)

func TestBuildPGNParses(t *testing.T) {
	rec := GameRecord{
		GameID:    "g1",
		WhiteName: "Agent White",
		BlackName: "Agent Black", BlackModel: "gpt-4o-mini",
		Result:   "black",
		Method:   "checkmate",
		MovesUCI: []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN: []string{"f3", "e5", "g4", "Qh4#"},
		EndedAt:  time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC),
	}
	pgn := BuildPGN(rec)
	for _, want := range []string{
		`[Date "2025.03.09"]`,
		`[ECO "A`,
		`[Black "Agent Black (gpt-4o-mini)"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}

	opt, err := nchess.PGN(strings.NewReader(pgn))
	if err != nil {
		t.Fatalf("rules engine rejected pgn: %v", err)
	}
	g := nchess.NewGame(opt)
	if len(g.Moves()) != 4 || g.Outcome() != nchess.BlackWon {
		t.Fatalf("unexpected parsed game: moves=%d outcome=%s", len(g.Moves()), g.Outcome())
	}
}

func TestBuildPGNFromPosition(t *testing.T) {
	pgn := BuildPGN(GameRecord{
		StartFEN: "7k/8/6K1/8/8/8/8/5Q2 b - - 0 1",
		MovesSAN: []string{"Kg8", "Qf7+"},
		Result:   "none",
	})
	if !strings.Contains(pgn, `[SetUp "1"]`) || !strings.Contains(pgn, "1... Kg8 2. Qf7+ *") || strings.Contains(pgn, "[ECO") {
		t.Fatalf("unexpected pgn:\n%s", pgn)
	}
	if PGNResult("draw") != "1/2-1/2" || PGNResult("") != "*" {
		t.Fatalf("unexpected result mapping")
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()
	exerciseRepository(t, repo)

	rec := GameRecord{
		GameID:    "fools",
		WhiteName: "Agent White",
		BlackName: "Agent Black", BlackModel: "level8",
		Result:   "black",
		Method:   "checkmate",
		MovesUCI: []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN: []string{"f3", "e5", "g4", "Qh4#"},
	}
	if err := repo.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	rec.Result, rec.Method, rec.PGN = "none", "aborted", ""
	if err := repo.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult upsert: %v", err)
	}
	got, err := repo.Get(ctx, "fools")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Method != "aborted" || got.BlackModel != "level8" || len(got.MovesUCI) != 4 || got.MovesSAN[3] != "Qh4#" {
		t.Fatalf("unexpected round trip %+v", got)
	}
}

func TestSQLitePath(t *testing.T) {
	t.Cleanup(xdg.Reload)
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	xdg.Reload()

	got, err := SQLitePath("results.db")
	if err != nil {
		t.Fatalf("SQLitePath: %v", err)
	}
	if want := filepath.Join(dir, "chess-arena", "results.db"); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	for _, p := range []string{":memory:", "./local.db", "/var/lib/arena/results.db"} {
		if got, _ := SQLitePath(p); got != p {
			t.Fatalf("%s should be used as given, got %s", p, got)
		}
	}
	if _, err := SQLitePath(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		err := repo.SaveResult(ctx, GameRecord{
			GameID:    id,
			Result:    "draw",
			StartedAt: base,
			EndedAt:   base.Add(time.Duration(i+1) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].GameID != "c" || recent[1].GameID != "b" {
		t.Fatalf("unexpected order: %+v", recent)
	}
	got, err := repo.Get(ctx, "a")
	if err != nil || got.Duration != time.Minute || got.PGN == "" {
		t.Fatalf("unexpected record %+v err=%v", got, err)
	}
	if _, err := repo.Get(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRequiresURL(t *testing.T) {
	if _, err := NewPostgresRepository(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
