package shogi

// relocate moves the piece on from to to, sending any captured piece to the
// mover's hand demoted and with its owner flipped. Turn, check and winner are
// left untouched.
func relocate(b Board, from, to Position, promote bool) Board {
	piece := b.cells[from.Row][from.Col]
	if target := b.cells[to.Row][to.Col]; target.present {
		b.hands[piece.Owner].push(target.Kind, target.ID)
	}
	b.cells[from.Row][from.Col] = Piece{}
	if promote || IsForcedPromotion(piece, to.Row) {
		if piece.Kind.Promotable() {
			piece.Promoted = true
		}
	}
	b.cells[to.Row][to.Col] = piece
	return b
}

// placeFromHand drops a piece of kind for owner onto to. Turn, check and
// winner are left untouched.
func placeFromHand(b Board, kind PieceKind, to Position, owner Side) Board {
	id, _ := b.hands[owner].pop(kind)
	p := NewPiece(kind, owner, false)
	p.ID = id
	b.cells[to.Row][to.Col] = p
	return b
}

// validate checks m against b without regard to whose turn it is.
func validate(b Board, m Move) *MoveError {
	if b.hasWinner {
		return newMoveError(IllegalMove, "game is over")
	}
	if !m.To.Valid() {
		return malformed("destination %s is off the board", m.To)
	}
	switch m.Type {
	case BoardMoveType:
		return validateBoardMove(b, m.From, m.To, m.Promote)
	case DropType:
		return validateDrop(b, m.Kind, m.To, m.Owner)
	default:
		return malformed("unknown move type %d", m.Type)
	}
}

func validateBoardMove(b Board, from, to Position, promote bool) *MoveError {
	if !from.Valid() {
		return malformed("source %s is off the board", from)
	}
	if !to.Valid() {
		return malformed("destination %s is off the board", to)
	}
	piece, ok := b.PieceAt(from)
	if !ok {
		return newMoveError(IllegalMove, "no piece on %s", from)
	}
	reachable := false
	for _, dest := range Destinations(b, from) {
		if dest == to {
			reachable = true
			break
		}
	}
	if !reachable {
		return newMoveError(IllegalMove, "%s on %s cannot reach %s", piece.Kind, from, to)
	}
	if promote && !CanPromote(piece, from.Row, to.Row) {
		return newMoveError(IllegalMove, "%s cannot promote moving %s to %s", piece.Kind, from, to)
	}
	if IsInCheck(relocate(b, from, to, promote), piece.Owner) {
		return newMoveError(IllegalMove, "%s%s leaves the %s king in check", from, to, piece.Owner)
	}
	return nil
}

func validateDrop(b Board, kind PieceKind, to Position, owner Side) *MoveError {
	if !kind.Valid() {
		return malformed("unknown piece kind %d", kind)
	}
	if !owner.Valid() {
		return malformed("unknown side %d", owner)
	}
	if !to.Valid() {
		return malformed("destination %s is off the board", to)
	}
	if b.hands[owner].Count(kind) == 0 {
		return newMoveError(IllegalDrop, "%s has no %s in hand", owner, kind)
	}
	if err := dropBlocked(b, kind, owner, to); err != nil {
		return err
	}
	if IsInCheck(placeFromHand(b, kind, to, owner), owner) {
		return newMoveError(IllegalMove, "dropping %s on %s leaves the %s king in check", kind, to, owner)
	}
	return nil
}

// ApplyBoardMove moves the piece on from to to for the side to move and
// returns the resulting board. A piece reaching a square it could never leave
// is promoted even when promote is false. The input board is never modified.
func ApplyBoardMove(b Board, from, to Position, promote bool) (Board, error) {
	if !from.Valid() || !to.Valid() {
		return b, malformed("squares %s and %s must both be on the board", from, to)
	}
	if piece, ok := b.PieceAt(from); ok && piece.Owner != b.turn {
		return b, newMoveError(OutOfTurn, "%s piece on %s moved on %s's turn", piece.Owner, from, b.turn)
	}
	if b.hasWinner {
		return b, newMoveError(IllegalMove, "game is over")
	}
	if err := validateBoardMove(b, from, to, promote); err != nil {
		return b, err
	}
	return finish(relocate(b, from, to, promote), b.turn), nil
}

// ApplyDrop places a piece of kind from owner's hand onto the empty square to.
// Dropped pieces are always unpromoted.
func ApplyDrop(b Board, kind PieceKind, to Position, owner Side) (Board, error) {
	if !owner.Valid() {
		return b, malformed("unknown side %d", owner)
	}
	if owner != b.turn {
		return b, newMoveError(OutOfTurn, "%s dropped on %s's turn", owner, b.turn)
	}
	if b.hasWinner {
		return b, newMoveError(IllegalMove, "game is over")
	}
	if err := validateDrop(b, kind, to, owner); err != nil {
		return b, err
	}
	return finish(placeFromHand(b, kind, to, owner), owner), nil
}

// Apply dispatches m to ApplyBoardMove or ApplyDrop.
func Apply(b Board, m Move) (Board, error) {
	switch m.Type {
	case BoardMoveType:
		return ApplyBoardMove(b, m.From, m.To, m.Promote)
	case DropType:
		return ApplyDrop(b, m.Kind, m.To, m.Owner)
	default:
		return b, malformed("unknown move type %d", m.Type)
	}
}

// finish flips the turn after mover played and settles check and winner. The
// side left to move loses when its king is gone or it has no legal move.
func finish(b Board, mover Side) Board {
	next := mover.Opponent()
	b.turn = next
	b.check = IsInCheck(b, next)
	if _, ok := b.kingPosition(next); !ok || !HasLegalMove(b, next) {
		b.winner = mover
		b.hasWinner = true
	}
	return b
}

// PlayLegal applies a move already produced by AllLegalMoves without
// re-validating it. The check flag is updated and a captured king ends the
// game, but a side left without moves is not detected; search code handles
// that itself. Anything else should use Apply.
func PlayLegal(b Board, m Move) Board {
	mover := b.turn
	if m.Type == DropType {
		b = placeFromHand(b, m.Kind, m.To, m.Owner)
		mover = m.Owner
	} else {
		mover = b.cells[m.From.Row][m.From.Col].Owner
		b = relocate(b, m.From, m.To, m.Promote)
	}
	next := mover.Opponent()
	b.turn = next
	b.check = IsInCheck(b, next)
	if _, ok := b.kingPosition(next); !ok {
		b.winner = mover
		b.hasWinner = true
	}
	return b
}

// WithWinner ends the game in favour of side, e.g. after a resignation.
func (b Board) WithWinner(side Side) Board {
	b.winner = side
	b.hasWinner = true
	return b
}
