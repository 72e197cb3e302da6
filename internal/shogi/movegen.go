package shogi

type delta struct {
	row int
	col int
}

// movement describes a piece as one-square steps plus sliding directions,
// both written from Sente's point of view (forward is row -1).
type movement struct {
	steps  []delta
	slides []delta
}

var (
	kingSteps = []delta{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
	goldSteps = []delta{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, 0},
	}
	silverSteps = []delta{
		{-1, -1}, {-1, 0}, {-1, 1},
		{1, -1}, {1, 1},
	}
	knightSteps   = []delta{{-2, -1}, {-2, 1}}
	pawnSteps     = []delta{{-1, 0}}
	orthogonals   = []delta{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	diagonals     = []delta{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	lanceSlides   = []delta{{-1, 0}}
	dragonExtra   = diagonals
	horseExtra    = orthogonals
	noDeltas      []delta
	movementTable = buildMovementTable()
)

func baseMovement(kind PieceKind, promoted bool) movement {
	if promoted {
		switch kind {
		case Rook:
			return movement{steps: dragonExtra, slides: orthogonals}
		case Bishop:
			return movement{steps: horseExtra, slides: diagonals}
		case Silver, Knight, Lance, Pawn:
			return movement{steps: goldSteps}
		}
	}
	switch kind {
	case King:
		return movement{steps: kingSteps}
	case Rook:
		return movement{slides: orthogonals}
	case Bishop:
		return movement{slides: diagonals}
	case Gold:
		return movement{steps: goldSteps}
	case Silver:
		return movement{steps: silverSteps}
	case Knight:
		return movement{steps: knightSteps}
	case Lance:
		return movement{slides: lanceSlides}
	case Pawn:
		return movement{steps: pawnSteps}
	}
	return movement{steps: noDeltas}
}

func mirror(ds []delta) []delta {
	out := make([]delta, len(ds))
	for i, d := range ds {
		out[i] = delta{row: -d.row, col: d.col}
	}
	return out
}

// buildMovementTable indexes movements by [owner][kind][promoted], with
// Gote's tables mirrored across the board.
func buildMovementTable() [2][KindCount][2]movement {
	var table [2][KindCount][2]movement
	for kind := PieceKind(0); kind < KindCount; kind++ {
		for promoted := 0; promoted < 2; promoted++ {
			m := baseMovement(kind, promoted == 1)
			table[Sente][kind][promoted] = m
			table[Gote][kind][promoted] = movement{steps: mirror(m.steps), slides: mirror(m.slides)}
		}
	}
	return table
}

func movementOf(p Piece) movement {
	promoted := 0
	if p.Promoted {
		promoted = 1
	}
	return movementTable[p.Owner][p.Kind][promoted]
}

// Destinations returns the squares the piece on from can reach, ignoring
// whether the move would leave its own king in check. Own pieces block and
// are excluded; enemy pieces block and are included as captures.
func Destinations(b Board, from Position) []Position {
	piece, ok := b.PieceAt(from)
	if !ok {
		return nil
	}
	return appendDestinations(nil, b, from, piece)
}

func appendDestinations(dst []Position, b Board, from Position, piece Piece) []Position {
	m := movementOf(piece)
	for _, d := range m.steps {
		to := from.add(d)
		if !to.Valid() {
			continue
		}
		target := b.cells[to.Row][to.Col]
		if target.present && target.Owner == piece.Owner {
			continue
		}
		dst = append(dst, to)
	}
	for _, d := range m.slides {
		for to := from.add(d); to.Valid(); to = to.add(d) {
			target := b.cells[to.Row][to.Col]
			if target.present {
				if target.Owner != piece.Owner {
					dst = append(dst, to)
				}
				break
			}
			dst = append(dst, to)
		}
	}
	return dst
}

func reaches(b Board, from Position, piece Piece, to Position) bool {
	m := movementOf(piece)
	dr, dc := to.Row-from.Row, to.Col-from.Col
	for _, d := range m.steps {
		if d.row == dr && d.col == dc {
			return true
		}
	}
	for _, d := range m.slides {
		if !alongRay(d, dr, dc) {
			continue
		}
		for sq := from.add(d); sq != to; sq = sq.add(d) {
			if b.cells[sq.Row][sq.Col].present {
				return false
			}
		}
		return true
	}
	return false
}

// alongRay reports whether (dr, dc) is a positive multiple of d.
func alongRay(d delta, dr, dc int) bool {
	if dr == 0 && dc == 0 {
		return false
	}
	var n int
	switch {
	case d.row != 0:
		if dr%d.row != 0 {
			return false
		}
		n = dr / d.row
	default:
		if dc%d.col != 0 {
			return false
		}
		n = dc / d.col
	}
	return n > 0 && d.row*n == dr && d.col*n == dc
}

// LegalMoves returns the destinations of the piece on from that do not leave
// its owner's king in check. The piece's owner is the mover regardless of
// whose turn it is.
func LegalMoves(b Board, from Position) []Position {
	piece, ok := b.PieceAt(from)
	if !ok {
		return nil
	}
	var legal []Position
	for _, to := range appendDestinations(nil, b, from, piece) {
		if !IsInCheck(relocate(b, from, to, false), piece.Owner) {
			legal = append(legal, to)
		}
	}
	return legal
}

// LegalDrops returns the empty squares where owner may drop a piece of kind
// from hand. Nifu files, squares where the piece could never move again and
// drops that leave the owner's king in check are excluded. Dropping a pawn
// that gives immediate mate is allowed.
func LegalDrops(b Board, kind PieceKind, owner Side) []Position {
	if !kind.Valid() || !owner.Valid() || b.hands[owner].Count(kind) == 0 {
		return nil
	}
	var legal []Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			to := Position{Row: row, Col: col}
			if dropBlocked(b, kind, owner, to) != nil {
				continue
			}
			if IsInCheck(placeFromHand(b, kind, to, owner), owner) {
				continue
			}
			legal = append(legal, to)
		}
	}
	return legal
}

// dropBlocked checks the board-geometry rules of a drop, excluding king safety.
func dropBlocked(b Board, kind PieceKind, owner Side, to Position) *MoveError {
	if b.cells[to.Row][to.Col].present {
		return newMoveError(IllegalDrop, "square %s is occupied", to)
	}
	if kind == Pawn && b.pawnOnFile(owner, to.Col) {
		return newMoveError(IllegalDrop, "nifu: %s already has a pawn on file %d", owner, to.File())
	}
	if deadSquare(kind, owner, to.Row) {
		return newMoveError(IllegalDrop, "%s dropped on %s could never move", kind, to)
	}
	return nil
}

// AllLegalMoves enumerates every legal board move and drop for side in a
// stable order: board moves row-major (non-promoting first), then drops in
// hand-kind order.
func AllLegalMoves(b Board, side Side) []Move {
	var moves []Move
	forEachLegalMove(b, side, func(m Move) bool {
		moves = append(moves, m)
		return true
	})
	return moves
}

// HasLegalMove reports whether side has at least one legal move or drop.
func HasLegalMove(b Board, side Side) bool {
	found := false
	forEachLegalMove(b, side, func(Move) bool {
		found = true
		return false
	})
	return found
}

func forEachLegalMove(b Board, side Side, yield func(Move) bool) {
	var dests [2 * Size * 2]Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			piece := b.cells[row][col]
			if !piece.present || piece.Owner != side {
				continue
			}
			from := Position{Row: row, Col: col}
			for _, to := range appendDestinations(dests[:0], b, from, piece) {
				if IsInCheck(relocate(b, from, to, false), side) {
					continue
				}
				forced := IsForcedPromotion(piece, to.Row)
				if !forced && !yield(NewBoardMove(from, to, false)) {
					return
				}
				if (forced || CanPromote(piece, from.Row, to.Row)) && !yield(NewBoardMove(from, to, true)) {
					return
				}
			}
		}
	}
	hand := b.hands[side]
	for _, kind := range HandKinds {
		if hand.Count(kind) == 0 {
			continue
		}
		for row := 0; row < Size; row++ {
			for col := 0; col < Size; col++ {
				to := Position{Row: row, Col: col}
				if dropBlocked(b, kind, side, to) != nil {
					continue
				}
				if IsInCheck(placeFromHand(b, kind, to, side), side) {
					continue
				}
				if !yield(NewDrop(kind, to, side)) {
					return
				}
			}
		}
	}
}
