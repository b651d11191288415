package results

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// SQLiteRepository keeps results in a local file for runs without Postgres.
type SQLiteRepository struct {
	db *sql.DB
}

// SQLitePath resolves a bare file name under $XDG_DATA_HOME/chess-arena,
// creating the directory. Paths with a directory part are used as given.
func SQLitePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("results database path is empty")
	}
	if name == ":memory:" || filepath.Base(name) != name {
		return name, nil
	}
	path, err := xdg.DataFile(filepath.Join("chess-arena", name))
	if err != nil {
		return "", fmt.Errorf("resolve data file %s: %w", name, err)
	}
	return path, nil
}

// NewSQLiteRepository opens path and creates the table when missing.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	path, err := SQLitePath(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; sqlite serializes anyway and :memory: needs a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure arena_games schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game.
func (r *SQLiteRepository) SaveResult(ctx context.Context, rec GameRecord) error {
	rec = Normalize(rec)
	movesUCI, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const q = `INSERT INTO arena_games (
        game_id, white_name, white_model, black_name, black_model,
        result, result_method, start_fen, moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
      ON CONFLICT (game_id) DO UPDATE SET
        white_name=excluded.white_name,
        white_model=excluded.white_model,
        black_name=excluded.black_name,
        black_model=excluded.black_model,
        result=excluded.result,
        result_method=excluded.result_method,
        start_fen=excluded.start_fen,
        moves_uci=excluded.moves_uci,
        moves_san=excluded.moves_san,
        pgn=excluded.pgn,
        started_at=excluded.started_at,
        ended_at=excluded.ended_at,
        duration_ms=excluded.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.GameID,
		rec.WhiteName, rec.WhiteModel,
		rec.BlackName, rec.BlackModel,
		rec.Result, rec.Method, rec.StartFEN,
		string(movesUCI), string(movesSAN), rec.PGN,
		rec.StartedAt.UTC(), rec.EndedAt.UTC(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert arena game %s: %w", rec.GameID, err)
	}
	return nil
}

// Recent returns the latest finished games, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM arena_games ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select arena games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate arena games: %w", err)
	}
	return out, nil
}

// Get loads one game.
func (r *SQLiteRepository) Get(ctx context.Context, gameID string) (*GameRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM arena_games WHERE game_id = ?`, gameID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}
