package arenadto

// StartRequest configures the players of a match. Kinds are openai, anthropic, random or stockfish.
type StartRequest struct {
	White    string `json:"white"`
	Black    string `json:"black"`
	MaxTurns int    `json:"max_turns,omitempty"`
	Seed     uint64 `json:"seed,omitempty"`
}

// CreateGameRequest creates a session and starts a match on it.
type CreateGameRequest struct {
	StartRequest
	FEN string `json:"fen,omitempty"`
}

type CreateGameResponse struct {
	GameID string     `json:"game_id"`
	State  *GameState `json:"state"`
}

type GamesResponse struct {
	Games []string `json:"games"`
}

type ResultsResponse struct {
	Results []GameResult `json:"results"`
}
