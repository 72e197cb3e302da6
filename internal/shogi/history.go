package shogi

import "fmt"

// MoveRecord is the persisted form of one applied move.
type MoveRecord struct {
	Type    string `json:"type" bson:"type"`
	From    string `json:"from,omitempty" bson:"from,omitempty"`
	To      string `json:"to" bson:"to"`
	Promote bool   `json:"promote,omitempty" bson:"promote,omitempty"`
	Kind    string `json:"kind,omitempty" bson:"kind,omitempty"`
	Owner   string `json:"owner,omitempty" bson:"owner,omitempty"`
}

const (
	recordMove = "move"
	recordDrop = "drop"
)

func RecordOf(m Move) MoveRecord {
	if m.Type == DropType {
		return MoveRecord{Type: recordDrop, To: m.To.String(), Kind: m.Kind.String(), Owner: m.Owner.String()}
	}
	return MoveRecord{Type: recordMove, From: m.From.String(), To: m.To.String(), Promote: m.Promote}
}

// Move converts the record back, validating every field.
func (r MoveRecord) Move() (Move, error) {
	to, err := ParsePosition(r.To)
	if err != nil {
		return Move{}, err
	}
	switch r.Type {
	case recordMove:
		from, err := ParsePosition(r.From)
		if err != nil {
			return Move{}, err
		}
		return NewBoardMove(from, to, r.Promote), nil
	case recordDrop:
		kind, err := ParsePieceKind(r.Kind)
		if err != nil {
			return Move{}, err
		}
		owner, err := ParseSide(r.Owner)
		if err != nil {
			return Move{}, err
		}
		return NewDrop(kind, to, owner), nil
	default:
		return Move{}, malformed("unknown record type %q", r.Type)
	}
}

// History is the append-only list of moves applied since Initial.
type History []Move

func (h History) Append(m Move) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, m)
}

func (h History) Records() []MoveRecord {
	out := make([]MoveRecord, len(h))
	for i, m := range h {
		out[i] = RecordOf(m)
	}
	return out
}

func HistoryFromRecords(records []MoveRecord) (History, error) {
	h := make(History, 0, len(records))
	for i, r := range records {
		m, err := r.Move()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		h = append(h, m)
	}
	return h, nil
}

// Replay applies h from the opening position.
func Replay(h History) (Board, error) {
	return ReplayFrom(Initial(), h)
}

// ReplayFrom applies h to start, failing on the first rejected move.
func ReplayFrom(start Board, h History) (Board, error) {
	b := start
	for i, m := range h {
		next, err := Apply(b, m)
		if err != nil {
			return start, fmt.Errorf("move %d (%s): %w", i+1, m, err)
		}
		b = next
	}
	return b, nil
}

// Undo drops the last n moves and replays the rest from the opening
// position. It never inverts moves.
func Undo(h History, n int) (Board, History, error) {
	if n < 0 || n > len(h) {
		return Board{}, h, malformed("cannot undo %d of %d moves", n, len(h))
	}
	kept := append(History(nil), h[:len(h)-n]...)
	b, err := Replay(kept)
	if err != nil {
		return Board{}, h, err
	}
	return b, kept, nil
}
