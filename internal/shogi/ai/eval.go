package ai

import "shogi_backend/internal/shogi"

const (
	// WinScore is the value of a won position; mates found earlier in the
	// search score higher by the remaining depth.
	WinScore = 100000
	infinity = 1_000_000_000

	checkBonus = 5
	guardBonus = 3
)

var pieceValues = [shogi.KindCount]int{
	shogi.King:   0,
	shogi.Rook:   100,
	shogi.Bishop: 80,
	shogi.Gold:   55,
	shogi.Silver: 50,
	shogi.Knight: 35,
	shogi.Lance:  30,
	shogi.Pawn:   10,
}

var promotedValues = [shogi.KindCount]int{
	shogi.Rook:   130,
	shogi.Bishop: 110,
	shogi.Silver: 58,
	shogi.Knight: 58,
	shogi.Lance:  58,
	shogi.Pawn:   60,
}

func pieceValue(p shogi.Piece) int {
	if p.Promoted {
		return promotedValues[p.Kind]
	}
	return pieceValues[p.Kind]
}

// Evaluate scores b from side's point of view: material on the board and
// in hand, a bonus for guards next to the king and a small term for check.
// Finished games score ±WinScore.
func Evaluate(b shogi.Board, side shogi.Side) int {
	if winner, ok := b.Winner(); ok {
		if winner == side {
			return WinScore
		}
		return -WinScore
	}

	score := 0
	for row := 0; row < shogi.Size; row++ {
		for col := 0; col < shogi.Size; col++ {
			p, ok := b.PieceAt(shogi.Position{Row: row, Col: col})
			if !ok {
				continue
			}
			if p.Owner == side {
				score += pieceValue(p)
			} else {
				score -= pieceValue(p)
			}
		}
	}
	for _, kind := range shogi.HandKinds {
		score += pieceValues[kind] * b.HandOf(side).Count(kind)
		score -= pieceValues[kind] * b.HandOf(side.Opponent()).Count(kind)
	}

	score += guardBonus * (guards(b, side) - guards(b, side.Opponent()))

	if b.Check() {
		if b.Turn() == side {
			score -= checkBonus
		} else {
			score += checkBonus
		}
	}
	return score
}

// guards counts side's pieces on the eight squares around its king.
func guards(b shogi.Board, side shogi.Side) int {
	king, ok := b.KingSquare(side)
	if !ok {
		return 0
	}
	n := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			p, ok := b.PieceAt(shogi.Position{Row: king.Row + dr, Col: king.Col + dc})
			if ok && p.Owner == side {
				n++
			}
		}
	}
	return n
}
