package arenadto

import "time"

// Snapshot is one rendered history entry.
type Snapshot struct {
	Ply     int       `json:"ply"`
	Side    string    `json:"side"`
	UCI     string    `json:"uci"`
	SAN     string    `json:"san"`
	FEN     string    `json:"fen"`
	Caption string    `json:"caption"`
	SVG     string    `json:"svg,omitempty"`
	At      time.Time `json:"at"`
}

type HistoryResponse struct {
	GameID    string     `json:"game_id"`
	Snapshots []Snapshot `json:"snapshots"`
}

// TranscriptLine is one agent message of a match.
type TranscriptLine struct {
	Turn    int       `json:"turn"`
	Side    string    `json:"side"`
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	Moved   bool      `json:"moved"`
	At      time.Time `json:"at"`
}

// MatchSummary is printed by the CLI when a match ends.
type MatchSummary struct {
	GameID     string           `json:"game_id"`
	Result     string           `json:"result"`
	Method     string           `json:"method"`
	Turns      int              `json:"turns"`
	MovesSAN   []string         `json:"moves_san"`
	FinalFEN   string           `json:"final_fen"`
	Opening    string           `json:"opening,omitempty"`
	Summary    string           `json:"summary"`
	Transcript []TranscriptLine `json:"transcript,omitempty"`
	Duration   time.Duration    `json:"duration"`
}
