package arenadto

// Live event types sent over the websocket feed.
const (
	EventState  = "state"
	EventMove   = "move"
	EventFinish = "finish"
	EventReset  = "reset"
)

// LiveEvent is one websocket frame.
type LiveEvent struct {
	Type     string     `json:"type"`
	GameID   string     `json:"game_id"`
	Snapshot *Snapshot  `json:"snapshot,omitempty"`
	State    *GameState `json:"state,omitempty"`
}
