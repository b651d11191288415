package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/park285/chess-agent-arena/internal/arena"
	"github.com/park285/chess-agent-arena/internal/config"
	"github.com/park285/chess-agent-arena/internal/movecheck"
	"github.com/park285/chess-agent-arena/internal/session"
	"github.com/park285/chess-agent-arena/pkg/arenadto"
)

type playFlags struct {
	white     string
	black     string
	fen       string
	maxTurns  int
	maxNudges int
	seed      uint64
	jsonOut   bool
	quiet     bool
	svgDir    string
	pngPath   string
}

func Play() *cobra.Command {
	var f playFlags
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one match in the terminal",
		Long: heredoc.Doc(`
			play runs a single match and prints the conversation as it happens,
			followed by the move history and the result. Each side is openai,
			anthropic, random or stockfish. A stockfish seat runs the UCI engine
			at $STOCKFISH_PATH with the strength named by $STOCKFISH_LEVEL.
		`),
		Example: heredoc.Doc(`
			chess-arena play --white random --black random --max-turns 200
			chess-arena play --white openai --black anthropic --svg-dir ./history
			STOCKFISH_LEVEL=beginner chess-arena play --white openai --black stockfish
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd.Context(), cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.white, "white", "", "white player: openai, anthropic, random or stockfish (default $WHITE_LLM)")
	fl.StringVar(&f.black, "black", "", "black player: openai, anthropic, random or stockfish (default $BLACK_LLM)")
	fl.StringVar(&f.fen, "fen", "", "starting position (default: standard)")
	fl.IntVar(&f.maxTurns, "max-turns", 0, "turn budget (default $ARENA_MAX_TURNS)")
	fl.IntVar(&f.maxNudges, "max-nudges", -1, "reminders per turn before a player forfeits its turn (default $ARENA_MAX_NUDGES)")
	fl.Uint64Var(&f.seed, "seed", 0, "seed of random players (default $ARENA_SEED or time)")
	fl.BoolVar(&f.jsonOut, "json", false, "print the match summary as JSON")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "do not print the conversation")
	fl.StringVar(&f.svgDir, "svg-dir", "", "write every history snapshot as an SVG file into this directory")
	fl.StringVar(&f.pngPath, "png", "", "write the final board as PNG to this file")
	return cmd
}

func loadConfig(apply func(cfg *config.AppConfig)) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPlay(ctx context.Context, cmd *cobra.Command, f playFlags) error {
	cfg, err := loadConfig(func(cfg *config.AppConfig) {
		if f.white != "" {
			cfg.White = config.SeatKind(strings.ToLower(f.white))
		}
		if f.black != "" {
			cfg.Black = config.SeatKind(strings.ToLower(f.black))
		}
		if f.maxTurns > 0 {
			cfg.MaxTurns = f.maxTurns
		}
		if f.maxNudges >= 0 {
			cfg.MaxNudges = f.maxNudges
		}
		if f.seed != 0 {
			cfg.Seed = f.seed
		}
	})
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	white, err := a.player("", movecheck.White, seed)
	if err != nil {
		return fmt.Errorf("white: %w", err)
	}
	black, err := a.player("", movecheck.Black, seed+1)
	if err != nil {
		return fmt.Errorf("black: %w", err)
	}

	mgr := a.manager()
	b, err := mgr.Create(ctx, arena.Describe(white), arena.Describe(black), f.fen)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	showConversation := !f.quiet && !f.jsonOut
	if showConversation && isatty.IsTerminal(os.Stderr.Fd()) {
		white, black = withSpinner(white), withSpinner(black)
	}
	m := &arena.Match{
		Broker:    b,
		White:     white,
		Black:     black,
		MaxTurns:  cfg.MaxTurns,
		MaxNudges: cfg.MaxNudges,
		Catalog:   a.msgs,
		Logger:    a.logger,
	}
	if showConversation {
		m.OnEntry = func(e arena.Entry) { printEntry(out, e) }
	}

	rep, runErr := m.Run(ctx)
	if rep == nil {
		return runErr
	}

	if f.svgDir != "" {
		if err := writeSVGs(f.svgDir, b); err != nil {
			return err
		}
	}
	if f.pngPath != "" {
		png, err := b.PNG(context.WithoutCancel(ctx), cfg.BoardSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.pngPath, png, 0o644); err != nil {
			return fmt.Errorf("write png: %w", err)
		}
	}

	summary := matchSummary(rep, a)
	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return runErr
	}
	printHistory(out, rep)
	if summary.Opening != "" {
		fmt.Fprintln(out, "Opening: "+summary.Opening)
	}
	fmt.Fprintln(out, summary.Summary)
	return runErr
}

func matchSummary(rep *arena.Report, a *app) arenadto.MatchSummary {
	s := arenadto.MatchSummary{
		GameID:   rep.GameID,
		Result:   string(rep.Outcome.Result),
		Method:   rep.Outcome.Method,
		Turns:    rep.Turns,
		MovesSAN: rep.MovesSAN,
		FinalFEN: rep.FinalFEN,
		Opening:  rep.Opening.String(),
		Summary:  rep.Summary(a.msgs),
		Duration: rep.Duration,
	}
	for _, e := range rep.Transcript {
		s.Transcript = append(s.Transcript, arenadto.TranscriptLine{
			Turn:    e.Turn,
			Side:    string(e.Side),
			Speaker: e.Speaker,
			Text:    e.Text,
			Moved:   e.Moved,
			At:      e.At,
		})
	}
	return s
}

var (
	whiteLabel = color.New(color.FgHiWhite, color.Bold).SprintFunc()
	blackLabel = color.New(color.FgHiBlack, color.Bold).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
)

func printEntry(w io.Writer, e arena.Entry) {
	label := whiteLabel(e.Speaker)
	if e.Side == movecheck.Black {
		label = blackLabel(e.Speaker)
	}
	text := e.Text
	if !e.Moved {
		text = faint(text)
	}
	fmt.Fprintf(w, "%s: %s\n", label, text)
}

// printHistory prints the moves as numbered SAN pairs.
func printHistory(w io.Writer, rep *arena.Report) {
	if len(rep.MovesSAN) == 0 {
		return
	}
	var sb strings.Builder
	for i, san := range rep.MovesSAN {
		if i%2 == 0 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d.", i/2+1)
		}
		sb.WriteByte(' ')
		sb.WriteString(san)
	}
	fmt.Fprintln(w, sb.String())
}

func writeSVGs(dir string, b *session.Broker) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create svg dir: %w", err)
	}
	for _, snap := range b.History() {
		name := filepath.Join(dir, fmt.Sprintf("move-%03d-%s.svg", snap.Ply, snap.Side))
		if err := os.WriteFile(name, []byte(snap.SVG), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// spinningPlayer shows a spinner on stderr while the wrapped player thinks.
type spinningPlayer struct {
	arena.Player
	s *spinner.Spinner
}

func withSpinner(p arena.Player) arena.Player {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + p.Name() + " is thinking"
	return &spinningPlayer{Player: p, s: s}
}

func (p *spinningPlayer) TakeTurn(ctx context.Context, in arena.TurnInput) (string, error) {
	p.s.Start()
	defer p.s.Stop()
	return p.Player.TakeTurn(ctx, in)
}

func (p *spinningPlayer) Describe() session.Player { return arena.Describe(p.Player) }
