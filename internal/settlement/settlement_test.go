package settlement

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDecisive(t *testing.T) {
	c, err := NewContract("", "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)

	ended := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := c.Build("42", movecheck.Outcome{Result: movecheck.ResultBlack, Method: "checkmate"}, ended)
	require.NoError(t, err)
	assert.Equal(t, "42", p.ChainGameID)
	assert.False(t, p.WhiteWon)
	assert.False(t, p.Draw)
	assert.Equal(t, common.HexToAddress("0xaa").Hex(), p.Contract)

	data, err := hexutil.Decode(p.Calldata)
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)
	assert.Equal(t, crypto.Keccak256([]byte("settle(uint256,bool)"))[:4], data[:4])

	args, err := c.abi.Methods["settle"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, 0, big.NewInt(42).Cmp(args[0].(*big.Int)))
	assert.Equal(t, false, args[1])
}

func TestBuildDrawAndUnsettled(t *testing.T) {
	c, err := NewContract("", "")
	require.NoError(t, err)

	p, err := c.Build("game-x", movecheck.Outcome{Result: movecheck.ResultDraw, Method: "stalemate"}, time.Now())
	require.NoError(t, err)
	assert.True(t, p.Draw)
	assert.Empty(t, p.Calldata)
	assert.Empty(t, p.Contract)
	assert.Equal(t, ChainGameID("game-x").String(), p.ChainGameID)

	_, err = c.Build("game-x", movecheck.Outcome{Result: movecheck.ResultNone, Method: "aborted"}, time.Now())
	assert.ErrorIs(t, err, ErrUnsettled)
}

func TestChainGameID(t *testing.T) {
	assert.Equal(t, "7", ChainGameID(" 7 ").String())
	a := ChainGameID("game-a")
	assert.Equal(t, 0, a.Cmp(ChainGameID("game-a")))
	assert.NotEqual(t, 0, a.Cmp(ChainGameID("game-b")))
	assert.LessOrEqual(t, a.BitLen(), 256)
}

func TestPlaceBetCalldata(t *testing.T) {
	c, err := NewContract("", "")
	require.NoError(t, err)
	data, err := c.PlaceBetCalldata(big.NewInt(1), true)
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("placeBet(uint256,bool)"))[:4], data[:4])
	assert.Equal(t, byte(1), data[len(data)-1])
}

func TestLoadContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.json")
	body := `{"address":"0x00000000000000000000000000000000000000bb","abi":` + DefaultABI + `}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	c, err := LoadContract(path)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xbb"), c.Address)

	_, err = NewContract("", "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = NewContract(`[{"type":"function","name":"other","inputs":[],"outputs":[]}]`, "")
	assert.Error(t, err)
}

type recordingSink struct {
	got []Payload
	err error
}

func (r *recordingSink) Publish(_ context.Context, p Payload) error {
	r.got = append(r.got, p)
	return r.err
}

func (r *recordingSink) Close() error { return nil }

func TestMultiSink(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSink{}
	bad := &recordingSink{err: boom}
	m := MultiSink{NewLogSink(nil), ok, bad}

	err := m.Publish(context.Background(), Payload{GameID: "g"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.got, 1)
	assert.Len(t, bad.got, 1)
	assert.NoError(t, m.Close())
}

func TestAMQPSinkRequiresURL(t *testing.T) {
	_, err := NewAMQPSink(AMQPConfig{})
	assert.Error(t, err)
}
