package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/sessionstore"
)

func newRedisBackedManager(t *testing.T) (*Manager, sessionstore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	store, err := sessionstore.NewRedisStore(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return NewManager(store, nil), store
}

func TestManagerPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	m, store := newRedisBackedManager(t)

	b, err := m.Create(ctx, Player{Name: "Agent White", Kind: "random"}, Player{Name: "Agent Black", Kind: "random"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b.ApplyMove(ctx, "e2e4")
	b.ApplyMove(ctx, "c7c5")

	rec, err := store.Load(ctx, b.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Ply() != 2 || rec.State != string(WaitingForWhite) || len(rec.History) != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}

	// a second manager over the same store restores from the record
	other := NewManager(store, nil)
	restored, err := other.Get(ctx, b.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v := restored.View()
	if v.Ply != 2 || v.State != WaitingForWhite || v.FEN != b.View().FEN || len(restored.History()) != 2 {
		t.Fatalf("unexpected restored view %+v", v)
	}
	if restored.IsTurnOver("") {
		t.Fatalf("pending signal must not be restored")
	}

	if _, err := m.Reset(ctx, b.ID()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	rec, _ = store.Load(ctx, b.ID())
	if rec.Ply() != 0 || rec.FEN != movecheck.StartFEN {
		t.Fatalf("reset not persisted: %+v", rec)
	}
}

func TestManagerStopPersisted(t *testing.T) {
	ctx := context.Background()
	m, store := newRedisBackedManager(t)
	b, err := m.Create(ctx, Player{Name: "w"}, Player{Name: "b"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b.Stop(ctx, MethodMaxTurns)
	rec, err := store.Load(ctx, b.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.State != string(GameOver) || rec.Outcome.Method != MethodMaxTurns {
		t.Fatalf("stop not persisted: %+v", rec)
	}
}

func TestManagerPersistsMovesAfterCancel(t *testing.T) {
	m, store := newRedisBackedManager(t)
	b, err := m.Create(context.Background(), Player{Name: "W"}, Player{Name: "B"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if res := b.Apply(canceled, "e2e4"); !res.Applied() {
		t.Fatalf("e2e4 rejected: %s", res.Description)
	}
	if res := b.Apply(context.Background(), "e7e5"); !res.Applied() {
		t.Fatalf("e7e5 rejected: %s", res.Description)
	}
	b.Stop(canceled, MethodAborted)

	rec, err := store.Load(context.Background(), b.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Ply() != 2 || rec.MovesUCI[0] != "e2e4" || rec.MovesUCI[1] != "e7e5" {
		t.Fatalf("stored moves %v, want [e2e4 e7e5]", rec.MovesUCI)
	}
	if rec.State != string(GameOver) || rec.Outcome.Method != MethodAborted {
		t.Fatalf("abort not stored: state=%s outcome=%+v", rec.State, rec.Outcome)
	}
}

func TestManagerNotFound(t *testing.T) {
	m := NewManager(nil, nil)
	if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	b, err := m.Create(context.Background(), Player{Name: "w"}, Player{Name: "b"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ids := m.IDs(); len(ids) != 1 || ids[0] != b.ID() {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := m.Delete(context.Background(), b.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(context.Background(), b.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}
