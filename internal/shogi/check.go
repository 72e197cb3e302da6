package shogi

// IsInCheck reports whether any enemy piece can reach side's king. A side
// without a king on the board is never in check.
func IsInCheck(b Board, side Side) bool {
	king, ok := b.kingPosition(side)
	if !ok {
		return false
	}
	return attacked(b, king, side.Opponent())
}

// attacked reports whether a piece of side by reaches target.
func attacked(b Board, target Position, by Side) bool {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			p := b.cells[row][col]
			if !p.present || p.Owner != by {
				continue
			}
			if reaches(b, Position{Row: row, Col: col}, p, target) {
				return true
			}
		}
	}
	return false
}

// IsLegal reports whether m is geometrically valid for the mover (the owner of
// the moving piece, or the drop's owner) and does not leave the mover's king
// in check. Whose turn it is does not matter.
func IsLegal(b Board, m Move) bool {
	return validate(b, m) == nil
}

// IsCheckmate reports whether side is in check and no board move or drop gets
// it out of check.
func IsCheckmate(b Board, side Side) bool {
	if !IsInCheck(b, side) {
		return false
	}
	return !HasLegalMove(b, side)
}

// relativeRank counts ranks from the owner's far edge: 0 is the last rank.
func relativeRank(owner Side, row int) int {
	if owner == Sente {
		return row
	}
	return Size - 1 - row
}

// deadSquare reports whether an unpromoted piece of kind would have no move
// at all from row.
func deadSquare(kind PieceKind, owner Side, row int) bool {
	rank := relativeRank(owner, row)
	switch kind {
	case Pawn, Lance:
		return rank == 0
	case Knight:
		return rank <= 1
	}
	return false
}

// IsForcedPromotion reports whether piece must promote on arriving at toRow
// because it would otherwise never be able to move again.
func IsForcedPromotion(piece Piece, toRow int) bool {
	if piece.Promoted {
		return false
	}
	return deadSquare(piece.Kind, piece.Owner, toRow)
}
