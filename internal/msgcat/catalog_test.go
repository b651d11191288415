package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("moves.moved", map[string]string{"Piece": "white Pawn", "Glyph": "♙", "From": "e2", "To": "e4"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Moved white Pawn (♙) from e2 to e4." {
		t.Fatalf("unexpected text: %q", got)
	}
	if nudge, _ := c.Render("broker.nudge", nil); nudge != "Please make a move." {
		t.Fatalf("unexpected nudge: %q", nudge)
	}
	prompt, err := c.Render("arena.system_prompt", map[string]string{"Color": "white"})
	if err != nil {
		t.Fatalf("Render system prompt: %v", err)
	}
	if strings.Contains(prompt, "\n") || !strings.Contains(prompt, "play as white") {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestRenderMissingKeyAndData(t *testing.T) {
	c := Default()
	if _, err := c.Render("does.not.exist", nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
	if _, err := c.Render("moves.moved", map[string]string{"Piece": "x"}); err == nil {
		t.Fatalf("expected error for missing template data")
	}
	if got := c.RenderOr("does.not.exist", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr fallback: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("broker:\n  nudge: \"Your move.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("broker.nudge", nil); got != "Your move." {
		t.Fatalf("override not applied: %q", got)
	}
	if !c.Has("status.check") {
		t.Fatalf("embedded keys should survive overrides")
	}
}

func TestOverrideDirDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("status:\n  check: \"+\"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestRejectsNonStringLeaves(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("broker:\n  nudge: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for non-string leaf")
	}
}
