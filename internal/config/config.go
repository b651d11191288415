package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SeatKind is what plays one color.
type SeatKind string

const (
	SeatOpenAI    SeatKind = "openai"
	SeatAnthropic SeatKind = "anthropic"
	SeatRandom    SeatKind = "random"
	SeatStockfish SeatKind = "stockfish"
)

// ParseSeatKind accepts openai, anthropic, random or stockfish.
func ParseSeatKind(s string) (SeatKind, error) {
	switch k := SeatKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SeatOpenAI, SeatAnthropic, SeatRandom, SeatStockfish:
		return k, nil
	default:
		return "", fmt.Errorf("unknown player kind %q (want openai, anthropic, random or stockfish)", s)
	}
}

// LLMConfig is one provider's endpoint settings.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string
	// ResultsDB is a SQLite file used for results when DatabaseURL is empty.
	ResultsDB string
	AMQPURL   string
	AMQPQueue string

	SessionTTL time.Duration

	MaxTurns  int
	MaxNudges int
	BoardSize int
	Seed      uint64

	White SeatKind
	Black SeatKind

	OpenAI     LLMConfig
	Anthropic  LLMConfig
	LLMTimeout time.Duration

	// StockfishPath is the UCI engine binary, a path or a name in PATH.
	StockfishPath  string
	StockfishLevel string

	MessagesDir string

	// SettlementContract is a JSON file holding the contract abi and address.
	SettlementContract string
	// SettlementAddress overrides the address and enables settlement with the built-in abi.
	SettlementAddress string
}

// LLM returns the endpoint settings of kind.
func (c *AppConfig) LLM(kind SeatKind) LLMConfig {
	if kind == SeatAnthropic {
		return c.Anthropic
	}
	return c.OpenAI
}

// Validate checks the seats against the configured keys and the numeric bounds.
func (c *AppConfig) Validate() error {
	if c.MaxTurns < 1 || c.MaxTurns > 1000 {
		return fmt.Errorf("ARENA_MAX_TURNS must be between 1 and 1000, got %d", c.MaxTurns)
	}
	if c.MaxNudges < 0 {
		return fmt.Errorf("ARENA_MAX_NUDGES must not be negative, got %d", c.MaxNudges)
	}
	if c.BoardSize < 64 {
		return fmt.Errorf("ARENA_BOARD_SIZE must be at least 64, got %d", c.BoardSize)
	}
	var errs []error
	for _, seat := range []struct {
		env  string
		kind SeatKind
	}{{"WHITE_LLM", c.White}, {"BLACK_LLM", c.Black}} {
		if _, err := ParseSeatKind(string(seat.kind)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", seat.env, err))
			continue
		}
		switch seat.kind {
		case SeatOpenAI:
			if c.OpenAI.APIKey == "" {
				errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required when %s=openai", seat.env))
			}
		case SeatAnthropic:
			if c.Anthropic.APIKey == "" {
				errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required when %s=anthropic", seat.env))
			}
		case SeatStockfish:
			if c.StockfishPath == "" {
				errs = append(errs, fmt.Errorf("STOCKFISH_PATH is required when %s=stockfish", seat.env))
			}
		}
	}
	return errors.Join(errs...)
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:   ":8080",
		AMQPQueue:  "arena.outcomes",
		SessionTTL: 24 * time.Hour,
		MaxTurns:   5,
		MaxNudges:  3,
		BoardSize:  400,
		White:      SeatOpenAI,
		Black:      SeatAnthropic,
		LLMTimeout: 60 * time.Second,

		StockfishPath: "stockfish",
	}

	if v := env("ARENA_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.ResultsDB = env("ARENA_RESULTS_DB")
	cfg.AMQPURL = env("AMQP_URL")
	if v := env("AMQP_QUEUE"); v != "" {
		cfg.AMQPQueue = v
	}

	if v := env("ARENA_SESSION_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		} else if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	var errs []error
	if v := env("ARENA_MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ARENA_MAX_TURNS: %w", err))
		} else {
			cfg.MaxTurns = n
		}
	}
	if v := env("ARENA_MAX_NUDGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNudges = n
		}
	}
	if v := env("ARENA_BOARD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BoardSize = n
		}
	}
	if v := env("ARENA_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}

	if v := env("WHITE_LLM"); v != "" {
		cfg.White = SeatKind(strings.ToLower(v))
	}
	if v := env("BLACK_LLM"); v != "" {
		cfg.Black = SeatKind(strings.ToLower(v))
	}

	cfg.OpenAI = LLMConfig{APIKey: env("OPENAI_API_KEY"), BaseURL: env("OPENAI_BASE_URL"), Model: env("OPENAI_MODEL")}
	cfg.Anthropic = LLMConfig{APIKey: env("ANTHROPIC_API_KEY"), BaseURL: env("ANTHROPIC_BASE_URL"), Model: env("ANTHROPIC_MODEL")}
	if v := env("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LLMTimeout = d
		}
	}

	if v := env("STOCKFISH_PATH"); v != "" {
		cfg.StockfishPath = v
	}
	cfg.StockfishLevel = env("STOCKFISH_LEVEL")

	cfg.MessagesDir = env("ARENA_MESSAGES_DIR")
	cfg.SettlementContract = env("SETTLEMENT_CONTRACT")
	cfg.SettlementAddress = env("SETTLEMENT_ADDRESS")

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
