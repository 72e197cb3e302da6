package shogi

import "math"

// FlatPiece is the wire form of a piece.
type FlatPiece struct {
	Kind     string  `json:"kind" bson:"kind"`
	Owner    string  `json:"owner" bson:"owner"`
	Promoted bool    `json:"promoted" bson:"promoted"`
	ID       PieceID `json:"id" bson:"id"`
}

type FlatHands struct {
	Sente []FlatPiece `json:"sente" bson:"sente"`
	Gote  []FlatPiece `json:"gote" bson:"gote"`
}

// FlatBoard is an order-preserving flattening of a Board: 81 cells in
// row-major order, nil for an empty square.
type FlatBoard struct {
	Cells  []*FlatPiece `json:"cells" bson:"cells"`
	Hands  FlatHands    `json:"hands" bson:"hands"`
	Turn   string       `json:"turn" bson:"turn"`
	Check  bool         `json:"check" bson:"check"`
	Winner string       `json:"winner,omitempty" bson:"winner,omitempty"`
}

func flatPiece(p Piece) FlatPiece {
	return FlatPiece{Kind: p.Kind.String(), Owner: p.Owner.String(), Promoted: p.Promoted, ID: p.ID}
}

func Flatten(b Board) FlatBoard {
	fb := FlatBoard{
		Cells: make([]*FlatPiece, Size*Size),
		Turn:  b.turn.String(),
		Check: b.check,
	}
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if p := b.cells[row][col]; p.present {
				fp := flatPiece(p)
				fb.Cells[row*Size+col] = &fp
			}
		}
	}
	fb.Hands.Sente = flatHand(b, Sente)
	fb.Hands.Gote = flatHand(b, Gote)
	if b.hasWinner {
		fb.Winner = b.winner.String()
	}
	return fb
}

func flatHand(b Board, side Side) []FlatPiece {
	pieces := b.hands[side].Pieces(side)
	out := make([]FlatPiece, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, flatPiece(p))
	}
	return out
}

// maxPieceID is reserved so the next free ID never wraps around.
const maxPieceID = PieceID(math.MaxUint8)

// Unflatten rebuilds a Board from its wire form, keeping piece IDs. Every
// field is validated; the check flag is recomputed rather than trusted.
func Unflatten(fb FlatBoard) (Board, error) {
	if len(fb.Cells) != Size*Size {
		return Board{}, malformed("flat board has %d cells, want %d", len(fb.Cells), Size*Size)
	}
	turn, err := ParseSide(fb.Turn)
	if err != nil {
		return Board{}, err
	}
	b := NewBoard(turn)
	seen := make(map[PieceID]bool)
	claim := func(id PieceID) error {
		if id == maxPieceID {
			return malformed("piece id %d is out of range", id)
		}
		if seen[id] {
			return malformed("piece id %d used twice", id)
		}
		seen[id] = true
		if id >= b.nextID {
			b.nextID = id + 1
		}
		return nil
	}
	for i, cell := range fb.Cells {
		if cell == nil {
			continue
		}
		p, err := unflatPiece(*cell)
		if err != nil {
			return Board{}, err
		}
		if err := claim(p.ID); err != nil {
			return Board{}, err
		}
		b.cells[i/Size][i%Size] = p
	}
	for side, hand := range map[Side][]FlatPiece{Sente: fb.Hands.Sente, Gote: fb.Hands.Gote} {
		for _, fp := range hand {
			p, err := unflatPiece(fp)
			if err != nil {
				return Board{}, err
			}
			if p.Kind == King || p.Promoted {
				return Board{}, malformed("%s hand holds a %s that cannot be there", side, fp.Kind)
			}
			if err := claim(p.ID); err != nil {
				return Board{}, err
			}
			if !b.hands[side].push(p.Kind, p.ID) {
				return Board{}, malformed("too many %s in %s hand", p.Kind, side)
			}
		}
	}
	if fb.Winner != "" {
		winner, err := ParseSide(fb.Winner)
		if err != nil {
			return Board{}, err
		}
		b = b.WithWinner(winner)
	}
	b.check = IsInCheck(b, b.turn)
	return b, nil
}

func unflatPiece(fp FlatPiece) (Piece, error) {
	kind, err := ParsePieceKind(fp.Kind)
	if err != nil {
		return Piece{}, err
	}
	owner, err := ParseSide(fp.Owner)
	if err != nil {
		return Piece{}, err
	}
	if fp.Promoted && !kind.Promotable() {
		return Piece{}, malformed("%s cannot be promoted", kind)
	}
	p := NewPiece(kind, owner, fp.Promoted)
	p.ID = fp.ID
	return p, nil
}
