package shogi

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialSFEN(t *testing.T) {
	assert.Equal(t, InitialSFEN, ToSFEN(Initial(), 1))

	b, n, err := ParseSFEN(InitialSFEN)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, b.Equal(Initial()))
}

func TestSFENWithHandsAndPromotions(t *testing.T) {
	const sfen = "ln1g1g1nl/1r1s1k1+B1/p1pppp1pp/6p2/1p7/2P6/PP1PPPPPP/1S5R1/LN1GKGSNL w Bs2p 24"

	b, n, err := ParseSFEN(sfen)
	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.Equal(t, Gote, b.Turn())
	assert.Equal(t, 1, b.HandOf(Sente).Count(Bishop))
	assert.Equal(t, 1, b.HandOf(Gote).Count(Silver))
	assert.Equal(t, 2, b.HandOf(Gote).Count(Pawn))

	horse, ok := b.PieceAt(sq(t, "2b"))
	require.True(t, ok)
	assert.Equal(t, Bishop, horse.Kind)
	assert.True(t, horse.Promoted)
	assert.Equal(t, Sente, horse.Owner)

	assert.Equal(t, sfen, ToSFEN(b, n))
}

func TestParseSFENRejectsMalformed(t *testing.T) {
	for _, sfen := range []string{
		"",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1 b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL x - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSN b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNLL b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSG+KGSNL b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNX b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b K 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b 2 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - zero",
	} {
		_, _, err := ParseSFEN(sfen)
		assert.ErrorIs(t, err, ErrMalformedInput, sfen)
	}
}

func TestUSIMoves(t *testing.T) {
	tests := []struct {
		text string
		want Move
	}{
		{"7g7f", NewBoardMove(Position{Row: 6, Col: 2}, Position{Row: 5, Col: 2}, false)},
		{"2b3c+", NewBoardMove(Position{Row: 1, Col: 7}, Position{Row: 2, Col: 6}, true)},
		{"P*5e", NewDrop(Pawn, Position{Row: 4, Col: 4}, Gote)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseUSIMove(tt.text, Gote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, got.String())
		})
	}

	for _, bad := range []string{"", "7g", "7g7f=", "0a1a", "7j7f", "K*5e", "PP*5e", "X*5e", "P*5"} {
		_, err := ParseUSIMove(bad, Sente)
		assert.ErrorIs(t, err, ErrMalformedInput, bad)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	drops := 0
	for seed := int64(1); seed <= 12; seed++ {
		h, b := playRandomHistory(t, seed, 40)
		for _, m := range h {
			if m.IsDrop() {
				drops++
			}
		}

		fb := Flatten(b)
		require.Len(t, fb.Cells, Size*Size)
		assert.Equal(t, b.Turn().String(), fb.Turn)

		data, err := json.Marshal(fb)
		require.NoError(t, err)
		var decoded FlatBoard
		require.NoError(t, json.Unmarshal(data, &decoded))

		back, err := Unflatten(decoded)
		require.NoError(t, err)
		assert.True(t, b.Equal(back), "seed %d", seed)
	}
	require.Positive(t, drops, "the games should include drops")
}

func TestEqualAfterDropFromHand(t *testing.T) {
	// A pawn captured then dropped again leaves the same empty hand as a
	// board that never held it.
	var h Hand
	require.True(t, h.push(Pawn, 17))
	id, ok := h.pop(Pawn)
	require.True(t, ok)
	assert.Equal(t, PieceID(17), id)
	assert.Equal(t, Hand{}, h)

	b, _, err := ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 b P 1")
	require.NoError(t, err)
	to, err := ParsePosition("5e")
	require.NoError(t, err)
	dropped, err := Apply(b, NewDrop(Pawn, to, Sente))
	require.NoError(t, err)

	back, err := Unflatten(Flatten(dropped))
	require.NoError(t, err)
	assert.True(t, dropped.Equal(back))
}

func TestFlattenIsRowMajor(t *testing.T) {
	fb := Flatten(Initial())

	require.NotNil(t, fb.Cells[0])
	assert.Equal(t, "lance", fb.Cells[0].Kind)
	assert.Equal(t, "gote", fb.Cells[0].Owner)
	require.NotNil(t, fb.Cells[7*Size+7])
	assert.Equal(t, "rook", fb.Cells[7*Size+7].Kind)
	assert.Nil(t, fb.Cells[4*Size+4])
	assert.Empty(t, fb.Winner)
}

func TestUnflattenRejectsMalformed(t *testing.T) {
	valid := Flatten(Initial())

	short := valid
	short.Cells = short.Cells[:80]
	_, err := Unflatten(short)
	assert.ErrorIs(t, err, ErrMalformedInput)

	badKind := Flatten(Initial())
	badKind.Cells[0] = &FlatPiece{Kind: "dragonfly", Owner: "gote"}
	_, err = Unflatten(badKind)
	assert.ErrorIs(t, err, ErrMalformedInput)

	badTurn := Flatten(Initial())
	badTurn.Turn = "nobody"
	_, err = Unflatten(badTurn)
	assert.ErrorIs(t, err, ErrMalformedInput)

	dupID := Flatten(Initial())
	dupID.Cells[40] = &FlatPiece{Kind: "pawn", Owner: "sente", ID: dupID.Cells[0].ID}
	_, err = Unflatten(dupID)
	assert.ErrorIs(t, err, ErrMalformedInput)

	idOverflow := Flatten(Initial())
	idOverflow.Cells[40] = &FlatPiece{Kind: "pawn", Owner: "sente", ID: 255}
	_, err = Unflatten(idOverflow)
	assert.ErrorIs(t, err, ErrMalformedInput)

	kingInHand := Flatten(Initial())
	kingInHand.Hands.Sente = []FlatPiece{{Kind: "king", Owner: "sente", ID: 99}}
	_, err = Unflatten(kingInHand)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func playRandom(t testing.TB, seed int64, plies int) Board {
	t.Helper()
	_, b := playRandomHistory(t, seed, plies)
	return b
}

func playRandomHistory(t testing.TB, seed int64, plies int) (History, Board) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var h History
	b := Initial()
	for i := 0; i < plies && !b.Terminal(); i++ {
		moves := AllLegalMoves(b, b.Turn())
		m := moves[rng.Intn(len(moves))]
		next, err := Apply(b, m)
		require.NoError(t, err)
		h = h.Append(m)
		b = next
	}
	return h, b
}

func TestReplayIsDeterministic(t *testing.T) {
	for seed := int64(1); seed <= 3; seed++ {
		h, b := playRandomHistory(t, seed, 60)

		replayed, err := Replay(h)
		require.NoError(t, err)
		assert.True(t, b.Equal(replayed), "seed %d", seed)
	}
}

func TestHistoryRecordsRoundTrip(t *testing.T) {
	h, b := playRandomHistory(t, 11, 50)

	data, err := json.Marshal(h.Records())
	require.NoError(t, err)
	var records []MoveRecord
	require.NoError(t, json.Unmarshal(data, &records))

	back, err := HistoryFromRecords(records)
	require.NoError(t, err)
	assert.Equal(t, h, back)

	replayed, err := Replay(back)
	require.NoError(t, err)
	assert.True(t, b.Equal(replayed))
}

func TestUndoReplaysPrefix(t *testing.T) {
	h, _ := playRandomHistory(t, 5, 30)
	require.Len(t, h, 30)

	b, kept, err := Undo(h, 2)
	require.NoError(t, err)
	assert.Len(t, kept, 28)

	want, err := Replay(h[:28])
	require.NoError(t, err)
	assert.True(t, want.Equal(b))

	b, kept, err = Undo(h, len(h))
	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.True(t, Initial().Equal(b))

	_, _, err = Undo(h, 31)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestReplayStopsOnIllegalMove(t *testing.T) {
	h := History{
		NewBoardMove(Position{Row: 6, Col: 2}, Position{Row: 5, Col: 2}, false),
		NewBoardMove(Position{Row: 6, Col: 2}, Position{Row: 5, Col: 2}, false),
	}
	_, err := Replay(h)
	assert.Error(t, err)
}
