package main

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "chess-arena",
		Short: "Two agents play chess against each other through a move-checking broker",
		Long: heredoc.Doc(`
			chess-arena pits two agents against each other. Each agent can only
			list the legal moves and submit a move in UCI notation; the broker
			validates every move, keeps the board and decides when a turn is over.

			Configuration is read from the environment (WHITE_LLM, BLACK_LLM,
			OPENAI_API_KEY, REDIS_URL, DATABASE_URL, AMQP_URL, ...). Flags override it.
		`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(Play())
	root.AddCommand(Serve())
	root.AddCommand(Watch())
	root.AddCommand(Results())
	root.AddCommand(Bet())
	return root
}
