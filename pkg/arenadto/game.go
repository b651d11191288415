package arenadto

import "time"

type PlayerInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind,omitempty"`
	Model string `json:"model,omitempty"`
}

// GameState is the public view of one session.
type GameState struct {
	ID         string     `json:"id"`
	FEN        string     `json:"fen"`
	State      string     `json:"state"`
	Ply        int        `json:"ply"`
	Status     string     `json:"status"`
	Result     string     `json:"result"`
	Method     string     `json:"method,omitempty"`
	LegalMoves []string   `json:"legal_moves"`
	MovesUCI   []string   `json:"moves_uci"`
	MovesSAN   []string   `json:"moves_san"`
	White      PlayerInfo `json:"white"`
	Black      PlayerInfo `json:"black"`
	Running    bool       `json:"running"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// GameResult is a finished game as stored in the results repository.
type GameResult struct {
	GameID    string        `json:"game_id"`
	White     PlayerInfo    `json:"white"`
	Black     PlayerInfo    `json:"black"`
	Result    string        `json:"result"`
	Method    string        `json:"method"`
	MovesSAN  []string      `json:"moves_san"`
	PGN       string        `json:"pgn"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
}
