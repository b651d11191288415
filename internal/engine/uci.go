package engine

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// mateScore stands in for a forced mate in centipawns.
const mateScore = 30000

var ErrNoLimits = errors.New("no search limits specified")

// Limits bounds one search. At least one field must be set.
type Limits struct {
	Depth    int
	MoveTime time.Duration
	Nodes    int
}

func (l Limits) goTokens() ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTime > 0 {
		args = append(args, "movetime", strconv.FormatInt(l.MoveTime.Milliseconds(), 10))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.Itoa(l.Nodes))
	}
	if len(args) == 1 {
		return nil, ErrNoLimits
	}
	return args, nil
}

// timeout is how long Search waits for bestmove before giving up on the process.
func (l Limits) timeout() time.Duration {
	if l.MoveTime > 0 {
		return (l.MoveTime + 2*time.Second) * 3
	}
	if l.Depth > 0 {
		return min(max(time.Duration(l.Depth)*300*time.Millisecond, 6*time.Second), 20*time.Second)
	}
	return 6 * time.Second
}

// Candidate is one principal variation reported by the engine.
type Candidate struct {
	Move      string
	EvalCP    int
	Principal []string
}

func positionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if fen = strings.TrimSpace(fen); fen == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

// parseInfo reads the multipv index, score and pv of an info line. Lines
// without a pv are ignored.
func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	multipv := 1
	evalCP := 0
	pvIdx := -1

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						evalCP = v
					case "mate":
						evalCP = mateScore
						if v < 0 {
							evalCP = -mateScore
						}
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return 0, Candidate{}, false
	}
	pv := append([]string(nil), parts[pvIdx:]...)
	return multipv, Candidate{Move: pv[0], EvalCP: evalCP, Principal: pv}, true
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
