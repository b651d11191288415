// Package settlement turns finished games into settlement payloads for an
// external betting contract. It builds calldata but never signs or broadcasts.
package settlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultABI describes the betting contract: placeBet(gameId, onWhite) and settle(gameId, whiteWon).
const DefaultABI = `[
  {"type":"function","name":"placeBet","stateMutability":"payable",
   "inputs":[{"name":"gameId","type":"uint256"},{"name":"onWhite","type":"bool"}],"outputs":[]},
  {"type":"function","name":"settle","stateMutability":"nonpayable",
   "inputs":[{"name":"gameId","type":"uint256"},{"name":"whiteWon","type":"bool"}],"outputs":[]}
]`

var ErrInvalidAddress = errors.New("invalid contract address")

// Contract is the ABI and address of the betting contract.
type Contract struct {
	Address common.Address
	abi     abi.ABI
}

// NewContract parses abiJSON; an empty string uses DefaultABI. address may be empty.
func NewContract(abiJSON, address string) (*Contract, error) {
	if strings.TrimSpace(abiJSON) == "" {
		abiJSON = DefaultABI
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	for _, name := range []string{"placeBet", "settle"} {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("contract abi lacks %s", name)
		}
	}
	c := &Contract{abi: parsed}
	if address = strings.TrimSpace(address); address != "" {
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
		}
		c.Address = common.HexToAddress(address)
	}
	return c, nil
}

type contractFile struct {
	ABI     json.RawMessage `json:"abi"`
	Address string          `json:"address"`
}

// LoadContract reads a deployment file of the form {"abi": [...], "address": "0x..."}.
func LoadContract(path string) (*Contract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract file: %w", err)
	}
	var f contractFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode contract file %s: %w", path, err)
	}
	return NewContract(string(f.ABI), f.Address)
}

// SettleCalldata encodes settle(gameId, whiteWon).
func (c *Contract) SettleCalldata(gameID *big.Int, whiteWon bool) ([]byte, error) {
	data, err := c.abi.Pack("settle", gameID, whiteWon)
	if err != nil {
		return nil, fmt.Errorf("pack settle: %w", err)
	}
	return data, nil
}

// PlaceBetCalldata encodes placeBet(gameId, onWhite). The stake travels as the
// transaction value, which is outside this package.
func (c *Contract) PlaceBetCalldata(gameID *big.Int, onWhite bool) ([]byte, error) {
	data, err := c.abi.Pack("placeBet", gameID, onWhite)
	if err != nil {
		return nil, fmt.Errorf("pack placeBet: %w", err)
	}
	return data, nil
}

// ChainGameID maps a session id to the contract's uint256 game id. Decimal ids
// are used as is; anything else is hashed with keccak256.
func ChainGameID(sessionID string) *big.Int {
	id := strings.TrimSpace(sessionID)
	if n, ok := new(big.Int).SetString(id, 10); ok && n.Sign() >= 0 {
		return n
	}
	return new(big.Int).SetBytes(crypto.Keccak256([]byte(id)))
}
