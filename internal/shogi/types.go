package shogi

import (
	"fmt"
	"strings"
)

// Size is the number of rows and columns of the board.
const Size = 9

type Side uint8

const (
	Sente Side = iota
	Gote
)

func (s Side) Opponent() Side {
	if s == Sente {
		return Gote
	}
	return Sente
}

func (s Side) Valid() bool {
	return s == Sente || s == Gote
}

func (s Side) String() string {
	switch s {
	case Sente:
		return "sente"
	case Gote:
		return "gote"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// forward is the row delta of a single step towards the opponent.
func (s Side) forward() int {
	if s == Sente {
		return -1
	}
	return 1
}

func ParseSide(value string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sente", "black", "b":
		return Sente, nil
	case "gote", "white", "w":
		return Gote, nil
	default:
		return Sente, malformed("unknown side %q", value)
	}
}

type PieceKind uint8

const (
	King PieceKind = iota
	Rook
	Bishop
	Gold
	Silver
	Knight
	Lance
	Pawn

	KindCount = 8
)

// HandKinds lists the kinds that can sit in a hand, in SFEN order.
var HandKinds = [...]PieceKind{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

var kindNames = [KindCount]string{"king", "rook", "bishop", "gold", "silver", "knight", "lance", "pawn"}

var kindLetters = [KindCount]byte{'K', 'R', 'B', 'G', 'S', 'N', 'L', 'P'}

func (k PieceKind) Valid() bool {
	return k < KindCount
}

func (k PieceKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Letter returns the upper-case USI/SFEN letter of the kind.
func (k PieceKind) Letter() byte {
	if !k.Valid() {
		return '?'
	}
	return kindLetters[k]
}

// Promotable reports whether pieces of this kind may ever promote.
func (k PieceKind) Promotable() bool {
	return k.Valid() && k != King && k != Gold
}

func ParsePieceKind(value string) (PieceKind, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for i, name := range kindNames {
		if v == name {
			return PieceKind(i), nil
		}
	}
	if len(v) == 1 {
		return KindFromLetter(v[0])
	}
	return King, malformed("unknown piece kind %q", value)
}

// KindFromLetter maps a USI letter (either case) to a kind.
func KindFromLetter(letter byte) (PieceKind, error) {
	upper := letter
	if upper >= 'a' && upper <= 'z' {
		upper -= 'a' - 'A'
	}
	for i, l := range kindLetters {
		if l == upper {
			return PieceKind(i), nil
		}
	}
	return King, malformed("unknown piece letter %q", string(letter))
}

// PieceID identifies a physical piece for the lifetime of a match.
type PieceID uint8

type Piece struct {
	Kind     PieceKind
	Owner    Side
	Promoted bool
	ID       PieceID

	present bool
}

func NewPiece(kind PieceKind, owner Side, promoted bool) Piece {
	return Piece{Kind: kind, Owner: owner, Promoted: promoted, present: true}
}

func (p Piece) demoted() Piece {
	p.Promoted = false
	return p
}

func (p Piece) String() string {
	if !p.present {
		return "."
	}
	s := string(p.Kind.Letter())
	if p.Owner == Gote {
		s = strings.ToLower(s)
	}
	if p.Promoted {
		s = "+" + s
	}
	return s
}

// Position is a board square. Row 0 is Gote's back rank, column 0 is file 9.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

func (p Position) add(d delta) Position {
	return Position{Row: p.Row + d.row, Col: p.Col + d.col}
}

// File is the conventional shogi file number (9..1 from left to right).
func (p Position) File() int {
	return Size - p.Col
}

// String renders the square in USI notation, e.g. "7g".
func (p Position) String() string {
	if !p.Valid() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return fmt.Sprintf("%d%c", p.File(), 'a'+p.Row)
}

func ParsePosition(token string) (Position, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if len(t) != 2 {
		return Position{}, malformed("square %q must look like 7g", token)
	}
	file := int(t[0] - '0')
	if file < 1 || file > Size {
		return Position{}, malformed("file of %q must be 1-9", token)
	}
	row := int(t[1] - 'a')
	if row < 0 || row >= Size {
		return Position{}, malformed("rank of %q must be a-i", token)
	}
	return Position{Row: row, Col: Size - file}, nil
}

type MoveType uint8

const (
	BoardMoveType MoveType = iota
	DropType
)

// Move is either a board move (From, To, Promote) or a drop (Kind, To, Owner).
// Build values with NewBoardMove or NewDrop.
type Move struct {
	Type    MoveType
	From    Position
	To      Position
	Promote bool
	Kind    PieceKind
	Owner   Side
}

func NewBoardMove(from, to Position, promote bool) Move {
	return Move{Type: BoardMoveType, From: from, To: to, Promote: promote}
}

func NewDrop(kind PieceKind, to Position, owner Side) Move {
	return Move{Type: DropType, Kind: kind, To: to, Owner: owner}
}

func (m Move) IsDrop() bool {
	return m.Type == DropType
}

func (m Move) String() string {
	return FormatUSIMove(m)
}
