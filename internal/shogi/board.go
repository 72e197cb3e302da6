package shogi

import "strings"

// maxHandPerKind bounds a hand stack; 18 pawns is the most any kind can reach.
const maxHandPerKind = 18

// Hand is a multiset of captured, unpromoted pieces. Piece IDs are kept so a
// dropped piece keeps the identity it had on the board.
type Hand struct {
	ids   [KindCount][maxHandPerKind]PieceID
	count [KindCount]uint8
}

func (h Hand) Count(kind PieceKind) int {
	if !kind.Valid() {
		return 0
	}
	return int(h.count[kind])
}

// Total is the number of pieces in the hand.
func (h Hand) Total() int {
	total := 0
	for _, n := range h.count {
		total += int(n)
	}
	return total
}

// Pieces lists the hand contents in kind order, oldest capture first.
func (h Hand) Pieces(owner Side) []Piece {
	var out []Piece
	for k := PieceKind(0); k < KindCount; k++ {
		for i := 0; i < int(h.count[k]); i++ {
			p := NewPiece(k, owner, false)
			p.ID = h.ids[k][i]
			out = append(out, p)
		}
	}
	return out
}

func (h *Hand) push(kind PieceKind, id PieceID) bool {
	if h.count[kind] >= maxHandPerKind {
		return false
	}
	h.ids[kind][h.count[kind]] = id
	h.count[kind]++
	return true
}

func (h *Hand) pop(kind PieceKind) (PieceID, bool) {
	if h.count[kind] == 0 {
		return 0, false
	}
	h.count[kind]--
	id := h.ids[kind][h.count[kind]]
	// Free slots stay zero so Equal can compare hands as plain arrays.
	h.ids[kind][h.count[kind]] = 0
	return id, true
}

// Board is an immutable-by-convention game position. Every method that
// changes the position returns a new Board; all state lives in arrays so a
// plain assignment is a deep copy.
type Board struct {
	cells     [Size][Size]Piece
	hands     [2]Hand
	turn      Side
	check     bool
	winner    Side
	hasWinner bool
	nextID    PieceID
}

var backRank = [Size]PieceKind{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}

// Initial returns the standard opening position with Sente to move.
func Initial() Board {
	b := NewBoard(Sente)
	place := func(row, col int, kind PieceKind, owner Side) {
		b = b.WithPiece(Position{Row: row, Col: col}, NewPiece(kind, owner, false))
	}
	for col, kind := range backRank {
		place(0, col, kind, Gote)
	}
	place(1, 1, Rook, Gote)
	place(1, 7, Bishop, Gote)
	for col := 0; col < Size; col++ {
		place(2, col, Pawn, Gote)
	}
	for col := 0; col < Size; col++ {
		place(6, col, Pawn, Sente)
	}
	place(7, 1, Bishop, Sente)
	place(7, 7, Rook, Sente)
	for col, kind := range backRank {
		place(8, col, kind, Sente)
	}
	return b
}

// NewBoard returns an empty board, used to set up custom positions.
func NewBoard(turn Side) Board {
	return Board{turn: turn}
}

func (b Board) Turn() Side {
	return b.turn
}

// Check reports whether the side to move is in check.
func (b Board) Check() bool {
	return b.check
}

func (b Board) Winner() (Side, bool) {
	return b.winner, b.hasWinner
}

func (b Board) Terminal() bool {
	return b.hasWinner
}

func (b Board) PieceAt(pos Position) (Piece, bool) {
	if !pos.Valid() {
		return Piece{}, false
	}
	p := b.cells[pos.Row][pos.Col]
	return p, p.present
}

func (b Board) HandOf(side Side) Hand {
	return b.hands[side]
}

// WithPiece places a piece on a square, replacing whatever was there. A fresh
// ID is assigned.
func (b Board) WithPiece(pos Position, p Piece) Board {
	if !pos.Valid() {
		return b
	}
	p.present = true
	p.ID = b.nextID
	b.nextID++
	b.cells[pos.Row][pos.Col] = p
	b.check = IsInCheck(b, b.turn)
	return b
}

// WithoutPiece clears a square.
func (b Board) WithoutPiece(pos Position) Board {
	if !pos.Valid() {
		return b
	}
	b.cells[pos.Row][pos.Col] = Piece{}
	b.check = IsInCheck(b, b.turn)
	return b
}

// WithHand adds count pieces of kind to a side's hand.
func (b Board) WithHand(side Side, kind PieceKind, count int) Board {
	if !kind.Valid() || !side.Valid() {
		return b
	}
	for i := 0; i < count; i++ {
		if !b.hands[side].push(kind, b.nextID) {
			break
		}
		b.nextID++
	}
	return b
}

// WithTurn returns the board with a different side to move.
func (b Board) WithTurn(side Side) Board {
	b.turn = side
	b.check = IsInCheck(b, side)
	return b
}

// WithMove applies a board move; see ApplyBoardMove.
func (b Board) WithMove(from, to Position, promote bool) (Board, error) {
	return ApplyBoardMove(b, from, to, promote)
}

// WithDrop applies a drop; see ApplyDrop.
func (b Board) WithDrop(kind PieceKind, to Position, owner Side) (Board, error) {
	return ApplyDrop(b, kind, to, owner)
}

// KingSquare returns the square of side's king, if it is still on the board.
func (b Board) KingSquare(side Side) (Position, bool) {
	return b.kingPosition(side)
}

func (b Board) kingPosition(side Side) (Position, bool) {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			p := b.cells[row][col]
			if p.present && p.Owner == side && p.Kind == King {
				return Position{Row: row, Col: col}, true
			}
		}
	}
	return Position{}, false
}

// pawnOnFile reports whether side has an unpromoted pawn in column col.
func (b Board) pawnOnFile(side Side, col int) bool {
	for row := 0; row < Size; row++ {
		p := b.cells[row][col]
		if p.present && p.Owner == side && p.Kind == Pawn && !p.Promoted {
			return true
		}
	}
	return false
}

// Equal compares two positions, including piece IDs, hands, turn and status.
func (b Board) Equal(other Board) bool {
	return b.cells == other.cells &&
		b.hands == other.hands &&
		b.turn == other.turn &&
		b.check == other.check &&
		b.hasWinner == other.hasWinner &&
		(!b.hasWinner || b.winner == other.winner)
}

// String renders the board as nine text rows followed by both hands.
func (b Board) String() string {
	var sb strings.Builder
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			cell := b.cells[row][col].String()
			if len(cell) == 1 {
				sb.WriteByte(' ')
			}
			sb.WriteString(cell)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	for _, side := range []Side{Sente, Gote} {
		sb.WriteString(side.String())
		sb.WriteString(":")
		for _, p := range b.hands[side].Pieces(side) {
			sb.WriteByte(' ')
			sb.WriteByte(p.Kind.Letter())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
