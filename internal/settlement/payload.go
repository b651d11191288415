package settlement

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/park285/chess-agent-arena/internal/movecheck"
)

// ErrUnsettled is returned for games that ended without a result.
var ErrUnsettled = errors.New("game has no result to settle")

// Payload is the outcome value handed to the external settlement process.
type Payload struct {
	GameID      string    `json:"game_id"`
	ChainGameID string    `json:"chain_game_id"`
	Result      string    `json:"result"`
	Method      string    `json:"method"`
	WhiteWon    bool      `json:"white_won"`
	Draw        bool      `json:"draw"`
	Contract    string    `json:"contract,omitempty"`
	Calldata    string    `json:"calldata,omitempty"`
	EndedAt     time.Time `json:"ended_at"`
}

// Build converts an outcome into a payload. Decisive games carry settle()
// calldata; draws carry none since settle only knows a winner.
func (c *Contract) Build(gameID string, outcome movecheck.Outcome, endedAt time.Time) (Payload, error) {
	if !outcome.Finished() {
		return Payload{}, ErrUnsettled
	}
	chainID := ChainGameID(gameID)
	p := Payload{
		GameID:      gameID,
		ChainGameID: chainID.String(),
		Result:      string(outcome.Result),
		Method:      outcome.Method,
		EndedAt:     endedAt.UTC(),
	}
	if c.Address != (common.Address{}) {
		p.Contract = c.Address.Hex()
	}
	winner, decisive := outcome.Winner()
	if !decisive {
		p.Draw = true
		return p, nil
	}
	p.WhiteWon = winner == movecheck.White
	data, err := c.SettleCalldata(chainID, p.WhiteWon)
	if err != nil {
		return Payload{}, err
	}
	p.Calldata = hexutil.Encode(data)
	return p, nil
}
