package engine

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const DefaultLevel = "level5"

// Level is a named strength setting: engine options, search limits and the
// weights used to pick among the top candidates.
type Level struct {
	Name     string
	Skill    int
	Threads  int
	HashMB   int
	MoveTime time.Duration
	Depth    int
	// Weights has one entry per candidate considered; its length sets MultiPV.
	Weights []float64
}

var levels = []Level{
	{Name: "level1", Skill: 0, HashMB: 16, MoveTime: 20 * time.Millisecond, Depth: 5, Weights: []float64{0.5, 0.3, 0.2}},
	{Name: "level2", Skill: 0, HashMB: 16, MoveTime: 60 * time.Millisecond, Depth: 6, Weights: []float64{0.6, 0.3, 0.1}},
	{Name: "level3", Skill: 1, HashMB: 24, MoveTime: 80 * time.Millisecond, Depth: 8, Weights: []float64{0.7, 0.2, 0.1}},
	{Name: "level4", Skill: 3, HashMB: 32, MoveTime: 140 * time.Millisecond, Depth: 10, Weights: []float64{0.65, 0.25, 0.1}},
	{Name: "level5", Skill: 7, HashMB: 48, MoveTime: 200 * time.Millisecond, Depth: 12, Weights: []float64{0.7, 0.2, 0.1}},
	{Name: "level6", Skill: 11, HashMB: 64, MoveTime: 300 * time.Millisecond, Depth: 16, Weights: []float64{0.8, 0.2}},
	{Name: "level7", Skill: 16, HashMB: 96, MoveTime: 500 * time.Millisecond, Depth: 20, Weights: []float64{0.85, 0.15}},
	{Name: "level8", Skill: 20, Threads: 4, HashMB: 128, MoveTime: time.Second, Depth: 30, Weights: []float64{1}},
}

var levelAliases = map[string]string{
	"beginner":     "level1",
	"intermediate": "level5",
	"advanced":     "level7",
	"master":       "level8",
}

// ParseLevel accepts level1..level8, a bare number, or one of beginner,
// intermediate, advanced and master. Empty means DefaultLevel.
func ParseLevel(name string) (Level, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultLevel
	}
	if alias, ok := levelAliases[key]; ok {
		key = alias
	}
	if _, err := strconv.Atoi(key); err == nil {
		key = "level" + key
	}
	for _, l := range levels {
		if l.Name == key {
			l.Weights = append([]float64(nil), l.Weights...)
			return l, nil
		}
	}
	return Level{}, fmt.Errorf("unknown engine level %q", name)
}

// Options are the process settings of the level.
func (l Level) Options() Options {
	threads := l.Threads
	if threads <= 0 {
		threads = 1
	}
	return Options{
		Threads:    threads,
		SkillLevel: l.Skill,
		HashMB:     l.HashMB,
		MultiPV:    max(len(l.Weights), 1),
	}
}

func (l Level) Limits() Limits {
	return Limits{Depth: l.Depth, MoveTime: l.MoveTime}
}

// choose draws among the first len(Weights) candidates by weight. It falls
// back to best when the engine reported no variations.
func (l Level) choose(candidates []Candidate, best string, r *rand.Rand) string {
	n := min(len(candidates), len(l.Weights))
	if n == 0 {
		return best
	}
	total := 0.0
	for _, w := range l.Weights[:n] {
		total += w
	}
	if total <= 0 {
		return candidates[0].Move
	}
	threshold := r.Float64() * total
	for i := range n {
		threshold -= l.Weights[i]
		if threshold <= 0 {
			return candidates[i].Move
		}
	}
	return candidates[n-1].Move
}
