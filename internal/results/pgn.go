package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-agent-arena/internal/movecheck"
)

// PGNResult maps a result token to the PGN result tag.
func PGNResult(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the game as PGN text from its SAN moves.
func BuildPGN(rec GameRecord) string {
	pgnResult := PGNResult(rec.Result)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	b.WriteString("[Event \"Agent Arena\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(playerLabel(rec.WhiteName, rec.WhiteModel)))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(playerLabel(rec.BlackName, rec.BlackModel)))
	if fen := strings.TrimSpace(rec.StartFEN); fen != "" && fen != movecheck.StartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(fen))
	}
	if o, ok := movecheck.ClassifyOpening(rec.StartFEN, rec.MovesUCI); ok {
		fmt.Fprintf(&b, "[ECO \"%s\"]\n", sanitizePGN(o.ECO))
		fmt.Fprintf(&b, "[Opening \"%s\"]\n", sanitizePGN(o.Name))
	}
	if m := strings.TrimSpace(rec.Method); m != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(m)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	// numbering follows the side to move of the start position
	blackFirst := strings.Contains(rec.StartFEN, " b ")
	moveNo := 1
	for i := 0; i < len(rec.MovesSAN); i++ {
		san := strings.TrimSpace(rec.MovesSAN[i])
		whiteToMove := (i%2 == 0) != blackFirst
		switch {
		case i == 0 && blackFirst:
			fmt.Fprintf(&b, "%d... %s ", moveNo, san)
			moveNo++
		case whiteToMove:
			fmt.Fprintf(&b, "%d. %s ", moveNo, san)
		default:
			fmt.Fprintf(&b, "%s ", san)
			moveNo++
		}
	}
	b.WriteString(pgnResult)
	return b.String()
}

func playerLabel(name, model string) string {
	name = strings.TrimSpace(name)
	if model = strings.TrimSpace(model); model != "" {
		return name + " (" + model + ")"
	}
	return name
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
