package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/park285/chess-agent-arena/internal/config"
)

func Results() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "results [game-id]",
		Short: "List finished games, or print the PGN of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				rec, err := a.results.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, rec.PGN)
				return nil
			}

			recs, err := a.results.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GAME\tWHITE\tBLACK\tRESULT\tMETHOD\tPLIES\tENDED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					r.GameID, r.WhiteName, r.BlackName, r.Result, r.Method, len(r.MovesUCI), r.EndedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of games to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}
