package ai

import "fmt"

// Strategy is one difficulty setting. Levels differ only by configuration.
type Strategy struct {
	Name string
	// Depth is the number of plies searched; 0 picks a random legal move.
	Depth int
	// Prune enables alpha-beta cut-offs, move ordering and a transposition
	// table. Results equal plain minimax up to tie-breaking.
	Prune bool
}

const (
	MinLevel = 1
	MaxLevel = 4
)

var strategies = [...]Strategy{
	{Name: "random", Depth: 0},
	{Name: "greedy", Depth: 1},
	{Name: "minimax", Depth: 2},
	{Name: "alphabeta", Depth: 3, Prune: true},
}

// StrategyFor returns the strategy behind a difficulty level.
func StrategyFor(level int) (Strategy, error) {
	if level < MinLevel || level > MaxLevel {
		return Strategy{}, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	return strategies[level-1], nil
}

// Levels lists every supported level in ascending order.
func Levels() []int {
	out := make([]int, 0, len(strategies))
	for i := range strategies {
		out = append(out, i+MinLevel)
	}
	return out
}
