package shogi

import (
	"strconv"
	"strings"
)

// InitialSFEN is the standard opening position.
const InitialSFEN = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"

// ToSFEN renders b in SFEN with the given move number. Piece IDs and the
// winner are not part of the notation.
func ToSFEN(b Board, moveNumber int) string {
	rows := make([]string, 0, Size)
	for row := 0; row < Size; row++ {
		rows = append(rows, rankToSFEN(b, row))
	}
	turn := "b"
	if b.turn == Gote {
		turn = "w"
	}
	hand := handsToSFEN(b)
	if hand == "" {
		hand = "-"
	}
	if moveNumber < 1 {
		moveNumber = 1
	}
	return strings.Join(rows, "/") + " " + turn + " " + hand + " " + strconv.Itoa(moveNumber)
}

func rankToSFEN(b Board, row int) string {
	var sb strings.Builder
	empty := 0
	for col := 0; col < Size; col++ {
		p := b.cells[row][col]
		if !p.present {
			empty++
			continue
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
			empty = 0
		}
		sb.WriteString(p.String())
	}
	if empty > 0 {
		sb.WriteString(strconv.Itoa(empty))
	}
	return sb.String()
}

func handsToSFEN(b Board) string {
	var sb strings.Builder
	for _, side := range []Side{Sente, Gote} {
		for _, kind := range HandKinds {
			n := b.hands[side].Count(kind)
			if n == 0 {
				continue
			}
			if n > 1 {
				sb.WriteString(strconv.Itoa(n))
			}
			letter := string(kind.Letter())
			if side == Gote {
				letter = strings.ToLower(letter)
			}
			sb.WriteString(letter)
		}
	}
	return sb.String()
}

// ParseSFEN reads a position. Pieces get fresh IDs in board order followed by
// hand order; the move number is returned separately and defaults to 1.
func ParseSFEN(sfen string) (Board, int, error) {
	fields := strings.Fields(sfen)
	if len(fields) < 3 {
		return Board{}, 0, malformed("sfen %q needs board, turn and hand fields", sfen)
	}
	var turn Side
	switch fields[1] {
	case "b":
		turn = Sente
	case "w":
		turn = Gote
	default:
		return Board{}, 0, malformed("sfen turn must be b or w, got %q", fields[1])
	}
	b := NewBoard(turn)
	b, err := parseBoardSFEN(b, fields[0])
	if err != nil {
		return Board{}, 0, err
	}
	b, err = parseHandsSFEN(b, fields[2])
	if err != nil {
		return Board{}, 0, err
	}
	moveNumber := 1
	if len(fields) > 3 {
		n, convErr := strconv.Atoi(fields[3])
		if convErr != nil || n < 1 {
			return Board{}, 0, malformed("sfen move number %q", fields[3])
		}
		moveNumber = n
	}
	b.check = IsInCheck(b, b.turn)
	return b, moveNumber, nil
}

func parseBoardSFEN(b Board, board string) (Board, error) {
	ranks := strings.Split(board, "/")
	if len(ranks) != Size {
		return b, malformed("sfen board has %d ranks", len(ranks))
	}
	for row, text := range ranks {
		col := 0
		for i := 0; i < len(text); i++ {
			c := text[i]
			if c >= '1' && c <= '9' {
				col += int(c - '0')
				continue
			}
			promoted := false
			if c == '+' {
				promoted = true
				i++
				if i >= len(text) {
					return b, malformed("dangling promotion marker in rank %d", row+1)
				}
				c = text[i]
			}
			kind, err := KindFromLetter(c)
			if err != nil {
				return b, err
			}
			if promoted && !kind.Promotable() {
				return b, malformed("%s cannot be promoted", kind)
			}
			if col >= Size {
				return b, malformed("rank %d has too many files", row+1)
			}
			owner := Sente
			if c >= 'a' && c <= 'z' {
				owner = Gote
			}
			b = b.WithPiece(Position{Row: row, Col: col}, NewPiece(kind, owner, promoted))
			col++
		}
		if col != Size {
			return b, malformed("rank %d does not have 9 files", row+1)
		}
	}
	return b, nil
}

func parseHandsSFEN(b Board, hand string) (Board, error) {
	if hand == "-" {
		return b, nil
	}
	count := 0
	for i := 0; i < len(hand); i++ {
		c := hand[i]
		if c >= '0' && c <= '9' {
			count = count*10 + int(c-'0')
			continue
		}
		if count == 0 {
			count = 1
		}
		kind, err := KindFromLetter(c)
		if err != nil {
			return b, err
		}
		if kind == King {
			return b, malformed("a king cannot be held in hand")
		}
		owner := Sente
		if c >= 'a' && c <= 'z' {
			owner = Gote
		}
		if b.hands[owner].Count(kind)+count > maxHandPerKind {
			return b, malformed("too many %s in %s hand", kind, owner)
		}
		b = b.WithHand(owner, kind, count)
		count = 0
	}
	if count != 0 {
		return b, malformed("trailing hand count in %q", hand)
	}
	return b, nil
}
