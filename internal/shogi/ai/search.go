// Package ai picks machine moves for a given difficulty level. Every call is
// independent: no state survives between searches, so concurrent calls on
// different boards are safe.
package ai

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"shogi_backend/internal/shogi"
)

var (
	ErrNoLegalMoves = errors.New("no legal moves to play")
	ErrUnknownLevel = errors.New("unknown level")
	ErrGameOver     = errors.New("game is over")
)

// Decision is the outcome of one search.
type Decision struct {
	Move  shogi.Move
	Score int
	Nodes int
	Level int
}

type options struct {
	rng *rand.Rand
}

type Option func(*options)

// WithRand supplies the random source used by level 1.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// BestMove returns the move level would play for side on b.
func BestMove(b shogi.Board, side shogi.Side, level int, opts ...Option) (shogi.Move, error) {
	d, err := Search(b, side, level, opts...)
	if err != nil {
		return shogi.Move{}, err
	}
	return d.Move, nil
}

// Search runs the strategy of level for side, which must be the side to move.
// A side with no legal move gets ErrNoLegalMoves; the rules score that
// position as lost, so callers should already have seen a winner.
func Search(b shogi.Board, side shogi.Side, level int, opts ...Option) (Decision, error) {
	strategy, err := StrategyFor(level)
	if err != nil {
		return Decision{}, err
	}
	if b.Terminal() {
		return Decision{}, ErrGameOver
	}
	if side != b.Turn() {
		return Decision{}, &shogi.MoveError{Kind: shogi.OutOfTurn, Reason: side.String() + " asked to move on " + b.Turn().String() + "'s turn"}
	}
	moves := shogi.AllLegalMoves(b, side)
	if len(moves) == 0 {
		return Decision{}, ErrNoLegalMoves
	}

	if strategy.Depth == 0 {
		o := options{}
		for _, opt := range opts {
			opt(&o)
		}
		if o.rng == nil {
			o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		m := moves[o.rng.Intn(len(moves))]
		return Decision{Move: m, Score: Evaluate(shogi.PlayLegal(b, m), side), Nodes: len(moves), Level: level}, nil
	}

	s := &searcher{maximizer: side, prune: strategy.Prune}
	if s.prune {
		s.table = make(map[string]ttEntry)
	}
	m, score := s.root(b, moves, strategy.Depth)
	return Decision{Move: m, Score: score, Nodes: s.nodes, Level: level}, nil
}

type boundType uint8

const (
	boundExact boundType = iota
	boundLower
	boundUpper
)

type ttEntry struct {
	depth int
	score int
	bound boundType
}

type searcher struct {
	maximizer shogi.Side
	prune     bool
	table     map[string]ttEntry
	nodes     int
}

// root returns the first move, in search order, that reaches the best score.
func (s *searcher) root(b shogi.Board, moves []shogi.Move, depth int) (shogi.Move, int) {
	if s.prune {
		moves = orderMoves(b, moves)
	}
	best := moves[0]
	bestScore := -infinity
	alpha, beta := -infinity, infinity
	for _, m := range moves {
		score := s.minimax(shogi.PlayLegal(b, m), depth-1, alpha, beta)
		if score > bestScore {
			bestScore = score
			best = m
		}
		if s.prune && bestScore > alpha {
			alpha = bestScore
		}
	}
	return best, bestScore
}

// minimax scores b from the maximizer's point of view with depth plies left.
func (s *searcher) minimax(b shogi.Board, depth, alpha, beta int) int {
	s.nodes++
	if winner, ok := b.Winner(); ok {
		return s.won(winner, depth)
	}
	if depth == 0 {
		// Mate is only looked for at the horizon when the side to move is
		// in check; that keeps leaves cheap.
		if b.Check() && !shogi.HasLegalMove(b, b.Turn()) {
			return s.won(b.Turn().Opponent(), depth)
		}
		return Evaluate(b, s.maximizer)
	}

	var key string
	alphaOrig, betaOrig := alpha, beta
	if s.prune {
		key = shogi.ToSFEN(b, 1)
		if entry, ok := s.table[key]; ok && entry.depth >= depth {
			switch entry.bound {
			case boundExact:
				return entry.score
			case boundLower:
				alpha = max(alpha, entry.score)
			case boundUpper:
				beta = min(beta, entry.score)
			}
			if alpha >= beta {
				return entry.score
			}
		}
	}

	moves := shogi.AllLegalMoves(b, b.Turn())
	if len(moves) == 0 {
		return s.won(b.Turn().Opponent(), depth)
	}
	if s.prune {
		moves = orderMoves(b, moves)
	}

	maximizing := b.Turn() == s.maximizer
	best := infinity
	if maximizing {
		best = -infinity
	}
	for _, m := range moves {
		score := s.minimax(shogi.PlayLegal(b, m), depth-1, alpha, beta)
		if maximizing {
			best = max(best, score)
			if s.prune {
				alpha = max(alpha, best)
			}
		} else {
			best = min(best, score)
			if s.prune {
				beta = min(beta, best)
			}
		}
		if s.prune && beta <= alpha {
			break
		}
	}

	if s.prune {
		s.table[key] = ttEntry{depth: depth, score: best, bound: determineBound(best, alphaOrig, betaOrig)}
	}
	return best
}

// won scores a finished line; quicker wins (more depth left) score higher.
func (s *searcher) won(winner shogi.Side, depth int) int {
	if winner == s.maximizer {
		return WinScore + depth
	}
	return -WinScore - depth
}

func determineBound(score, alphaOrig, betaOrig int) boundType {
	switch {
	case score <= alphaOrig:
		return boundUpper
	case score >= betaOrig:
		return boundLower
	default:
		return boundExact
	}
}

// orderMoves puts captures of valuable pieces and promotions first, keeping
// generation order otherwise.
func orderMoves(b shogi.Board, moves []shogi.Move) []shogi.Move {
	ordered := make([]shogi.Move, len(moves))
	copy(ordered, moves)
	keys := make(map[shogi.Move]int, len(moves))
	for _, m := range moves {
		k := 0
		if !m.IsDrop() {
			if target, ok := b.PieceAt(m.To); ok {
				k += 10 * pieceValue(target)
			}
			if m.Promote {
				k += 5
			}
		}
		keys[m] = k
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return keys[ordered[i]] > keys[ordered[j]]
	})
	return ordered
}
