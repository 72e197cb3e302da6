package shogi

import "strings"

// FormatUSIMove renders m in USI notation: "7g7f", "2b3c+" or "P*5e".
func FormatUSIMove(m Move) string {
	if m.Type == DropType {
		return string(m.Kind.Letter()) + "*" + m.To.String()
	}
	s := m.From.String() + m.To.String()
	if m.Promote {
		s += "+"
	}
	return s
}

// ParseUSIMove reads a USI move. Drops are attributed to mover since the
// notation does not name the owner.
func ParseUSIMove(text string, mover Side) (Move, error) {
	move := strings.TrimSpace(text)
	if strings.Contains(move, "*") {
		parts := strings.SplitN(move, "*", 2)
		if len(parts[0]) != 1 {
			return Move{}, malformed("invalid drop %q", text)
		}
		kind, err := KindFromLetter(parts[0][0])
		if err != nil {
			return Move{}, err
		}
		if kind == King {
			return Move{}, malformed("a king cannot be dropped: %q", text)
		}
		to, err := ParsePosition(parts[1])
		if err != nil {
			return Move{}, err
		}
		return NewDrop(kind, to, mover), nil
	}
	if len(move) != 4 && len(move) != 5 {
		return Move{}, malformed("invalid move %q", text)
	}
	from, err := ParsePosition(move[0:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParsePosition(move[2:4])
	if err != nil {
		return Move{}, err
	}
	promote := false
	if len(move) == 5 {
		if move[4] != '+' {
			return Move{}, malformed("invalid promotion marker in %q", text)
		}
		promote = true
	}
	return NewBoardMove(from, to, promote), nil
}
