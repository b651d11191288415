package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/park285/chess-agent-arena/internal/dashboard"
	"github.com/park285/chess-agent-arena/pkg/arenadto"
)

func Watch() *cobra.Command {
	var (
		server     string
		reconnects int
	)
	cmd := &cobra.Command{
		Use:   "watch <game-id>",
		Short: "Follow a game on a running dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return dashboard.Watch(cmd.Context(), dashboard.LiveURL(server, args[0]), dashboard.WatchOptions{
				MaxReconnects:  reconnects,
				ReconnectDelay: time.Second,
				OnState: func(s dashboard.WatchState) {
					fmt.Fprintln(cmd.ErrOrStderr(), faint("["+string(s)+"]"))
				},
				OnEvent: func(ev arenadto.LiveEvent) error {
					switch ev.Type {
					case arenadto.EventMove:
						if ev.Snapshot != nil {
							fmt.Fprintf(out, "%s: %s (%s)\n", ev.Snapshot.Caption, ev.Snapshot.SAN, ev.Snapshot.UCI)
						}
					case arenadto.EventState, arenadto.EventReset:
						if ev.State != nil {
							fmt.Fprintf(out, "%s %s ply %d\n", ev.Type, ev.State.State, ev.State.Ply)
						}
					case arenadto.EventFinish:
						if ev.State != nil {
							fmt.Fprintf(out, "game over: %s (%s)\n", ev.State.Result, ev.State.Method)
						}
						return dashboard.ErrStopWatch
					}
					return nil
				},
			})
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "dashboard base URL")
	cmd.Flags().IntVar(&reconnects, "reconnects", 5, "consecutive reconnect attempts before giving up")
	return cmd
}
