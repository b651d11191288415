package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ARENA_HTTP_ADDR", "ARENA_MAX_TURNS", "WHITE_LLM", "BLACK_LLM", "AMQP_QUEUE", "ARENA_SESSION_TTL"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.MaxTurns != 5 || cfg.MaxNudges != 3 || cfg.BoardSize != 400 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.White != SeatOpenAI || cfg.Black != SeatAnthropic || cfg.AMQPQueue != "arena.outcomes" {
		t.Fatalf("unexpected seat defaults: %+v", cfg)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl %s", cfg.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARENA_HTTP_ADDR", " :9090 ")
	t.Setenv("ARENA_MAX_TURNS", "250")
	t.Setenv("WHITE_LLM", "Random")
	t.Setenv("BLACK_LLM", "random")
	t.Setenv("ARENA_SESSION_TTL", "90m")
	t.Setenv("ARENA_SEED", "42")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.MaxTurns != 250 || cfg.Seed != 42 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Fatalf("unexpected ttl %s", cfg.SessionTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("random seats need no keys: %v", err)
	}
}

func TestLoadRejectsBadTurns(t *testing.T) {
	t.Setenv("ARENA_MAX_TURNS", "many")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{MaxTurns: 5, BoardSize: 400, White: SeatOpenAI, Black: SeatAnthropic}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("expected both key errors, got %v", err)
	}
	cfg.OpenAI.APIKey = "a"
	cfg.Anthropic.APIKey = "b"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.MaxTurns = 1001
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max turns bound error")
	}
	cfg.MaxTurns = 5
	cfg.White = "human"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "WHITE_LLM") {
		t.Fatalf("expected seat error, got %v", err)
	}
	if cfg.LLM(SeatAnthropic).APIKey != "b" {
		t.Fatalf("wrong provider settings")
	}
}

func TestStockfishSeat(t *testing.T) {
	t.Setenv("WHITE_LLM", "stockfish")
	t.Setenv("BLACK_LLM", "random")
	t.Setenv("STOCKFISH_PATH", "")
	t.Setenv("STOCKFISH_LEVEL", "advanced")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.White != SeatStockfish || cfg.StockfishPath != "stockfish" || cfg.StockfishLevel != "advanced" {
		t.Fatalf("unexpected engine settings: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.StockfishPath = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "STOCKFISH_PATH") {
		t.Fatalf("expected engine path error, got %v", err)
	}
}
