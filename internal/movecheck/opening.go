package movecheck

import (
	"sync"

	"github.com/corentings/chess/v2/opening"
)

// Opening is the ECO classification of a game's first moves.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

func (o Opening) String() string {
	if o.ECO == "" {
		return o.Name
	}
	return o.ECO + " " + o.Name
}

var (
	ecoOnce sync.Once
	ecoMu   sync.Mutex
	ecoBook *opening.BookECO
)

// Opening names the deepest ECO line the game follows. Games set up from a
// custom position are never classified.
func (b *Board) Opening() (Opening, bool) {
	if b.startFEN != StartFEN {
		return Opening{}, false
	}
	moves := b.game.Moves()
	if len(moves) == 0 {
		return Opening{}, false
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	ecoMu.Lock()
	o := ecoBook.Find(moves)
	ecoMu.Unlock()
	if o == nil {
		return Opening{}, false
	}
	return Opening{ECO: o.Code(), Name: o.Title()}, true
}

// ClassifyOpening replays moves from startFEN and classifies them.
func ClassifyOpening(startFEN string, moves []string) (Opening, bool) {
	b, err := Replay(startFEN, moves)
	if err != nil {
		return Opening{}, false
	}
	return b.Opening()
}
