package render

import (
	"time"
)

// Snapshot is one entry of a game's move history. It is produced after every
// applied move and is only ever displayed, never replayed.
type Snapshot struct {
	Ply     int       `json:"ply"`
	Side    string    `json:"side"`
	UCI     string    `json:"uci"`
	SAN     string    `json:"san"`
	FEN     string    `json:"fen"`
	Caption string    `json:"caption"`
	SVG     string    `json:"svg"`
	At      time.Time `json:"at"`
}

// History is an append-only list of snapshots.
type History struct {
	items []Snapshot
}

// Append adds a snapshot and returns the new length.
func (h *History) Append(s Snapshot) int {
	h.items = append(h.items, s)
	return len(h.items)
}

// Len reports the number of snapshots.
func (h *History) Len() int { return len(h.items) }

// Items returns a copy of the snapshots in order.
func (h *History) Items() []Snapshot {
	out := make([]Snapshot, len(h.items))
	copy(out, h.items)
	return out
}

// Last returns the most recent snapshot.
func (h *History) Last() (Snapshot, bool) {
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	return h.items[len(h.items)-1], true
}
