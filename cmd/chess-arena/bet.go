package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/park285/chess-agent-arena/internal/config"
	"github.com/park285/chess-agent-arena/internal/settlement"
)

// Bet prints the placeBet calldata for a game. The stake is the value of the
// transaction that carries it and is chosen by the wallet.
func Bet() *cobra.Command {
	return &cobra.Command{
		Use:   "bet <game-id> <white|black>",
		Short: "Print placeBet calldata for a game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a := &app{cfg: cfg}
			if err := a.buildContract(); err != nil {
				return err
			}
			var onWhite bool
			switch strings.ToLower(args[1]) {
			case "white", "w":
				onWhite = true
			case "black", "b":
			default:
				return fmt.Errorf("side must be white or black, got %q", args[1])
			}
			id := settlement.ChainGameID(args[0])
			data, err := a.contract.PlaceBetCalldata(id, onWhite)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "game id:  %s\n", id)
			fmt.Fprintf(out, "contract: %s\n", a.contract.Address.Hex())
			fmt.Fprintf(out, "calldata: %s\n", hexutil.Encode(data))
			return nil
		},
	}
}
