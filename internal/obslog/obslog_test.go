package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetAndOr(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Or(nil).Info("arena_move", zap.String("game_id", "g1"))
	if logs.Len() != 1 || logs.All()[0].ContextMap()["game_id"] != "g1" {
		t.Fatalf("global logger not used: %v", logs.All())
	}
	own := zap.NewNop()
	if Or(own) != own {
		t.Fatalf("Or should prefer the explicit logger")
	}
}

func TestBuildFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	l, err := Build(Options{Level: "debug", File: true, FilePath: path, Format: "json"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	l.Debug("hello", zap.Int("ply", 3))
	_ = l.Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"hello"`) || !strings.Contains(string(raw), `"ply":3`) {
		t.Fatalf("unexpected log output: %s", raw)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zap.WarnLevel || parseLevel("nonsense") != zap.InfoLevel {
		t.Fatalf("unexpected level parsing")
	}
}
