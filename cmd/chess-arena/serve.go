package main

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/park285/chess-agent-arena/internal/config"
	"github.com/park285/chess-agent-arena/internal/dashboard"
	"github.com/park285/chess-agent-arena/internal/session"
)

func Serve() *cobra.Command {
	var (
		addr            string
		maxTurns        int
		insecureOrigins bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and live feed",
		Long: heredoc.Doc(`
			serve starts the HTTP dashboard. Matches are started with
			POST /api/games and can be followed on /api/games/{id}/live.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(func(cfg *config.AppConfig) {
				if addr != "" {
					cfg.HTTPAddr = addr
				}
				if maxTurns > 0 {
					cfg.MaxTurns = maxTurns
				}
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			hub := dashboard.NewHub(a.logger)
			mgr := a.manager(session.WithMoveHook(hub.OnMove), session.WithFinishHook(hub.OnFinish))
			srv := dashboard.New(mgr, dashboard.Options{
				Addr:            cfg.HTTPAddr,
				MaxTurns:        cfg.MaxTurns,
				MaxNudges:       cfg.MaxNudges,
				BoardSize:       cfg.BoardSize,
				Players:         a.player,
				Results:         a.results,
				Hub:             hub,
				Logger:          a.logger,
				InsecureOrigins: insecureOrigins,
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $ARENA_HTTP_ADDR)")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "default turn budget of new matches")
	cmd.Flags().BoolVar(&insecureOrigins, "insecure-origins", false, "accept websocket connections from any origin")
	return cmd
}
