package shogi

// PromotionZoneDepth is the number of far ranks forming a promotion zone.
const PromotionZoneDepth = 3

// InPromotionZone reports whether row lies in owner's promotion zone, the
// three ranks nearest the opponent.
func InPromotionZone(owner Side, row int) bool {
	return relativeRank(owner, row) < PromotionZoneDepth
}

// CanPromote reports whether a move of piece between the two rows may
// promote: the kind must be promotable, the piece not yet promoted, and either
// endpoint inside the mover's zone.
func CanPromote(piece Piece, fromRow, toRow int) bool {
	if !piece.Kind.Promotable() || piece.Promoted {
		return false
	}
	return InPromotionZone(piece.Owner, fromRow) || InPromotionZone(piece.Owner, toRow)
}
