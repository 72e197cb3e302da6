package kifu

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shogi_backend/internal/domain/match"
	"shogi_backend/internal/shogi"
)

// bishopTrade exchanges bishops, recaptures on the same square and drops the
// captured bishop back.
var bishopTrade = []string{"7g7f", "3c3d", "8h2b+", "3a2b", "B*4e"}

func history(t *testing.T, usi ...string) shogi.History {
	t.Helper()
	var h shogi.History
	b := shogi.Initial()
	for _, text := range usi {
		m, err := shogi.ParseUSIMove(text, b.Turn())
		require.NoError(t, err, text)
		b, err = shogi.Apply(b, m)
		require.NoError(t, err, text)
		h = h.Append(m)
	}
	return h
}

func testHeader() Header {
	return Header{
		Sente:  "alice",
		Gote:   "bob",
		Start:  time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
		Winner: "gote",
		Reason: match.ReasonResign,
	}
}

func TestEncodeWritesJapaneseNotation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testHeader(), history(t, bishopTrade...)))
	text := buf.String()

	for _, want := range []string{
		"開始日時：2026/03/04 10:00:00",
		"先手：alice",
		"後手：bob",
		"   1 ７六歩(77)",
		"   3 ２二角成(88)",
		"   4 同　銀(31)",
		"   5 ４五角打",
		"   6 投了",
		"まで5手で後手の勝ち",
	} {
		assert.Contains(t, text, want)
	}
}

func TestEncodeMarksDeclinedPromotion(t *testing.T) {
	b, _, err := shogi.ParseSFEN("4k4/9/9/9/9/9/9/9/P3K4 b - 1")
	require.NoError(t, err)
	from, err := shogi.ParsePosition("9i")
	require.NoError(t, err)
	to, err := shogi.ParsePosition("9h")
	require.NoError(t, err)
	assert.Equal(t, "９八歩(99)", MoveText(b, shogi.NewBoardMove(from, to, false), nil))

	b, _, err = shogi.ParseSFEN("4k4/9/9/S8/9/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	from, _ = shogi.ParsePosition("9d")
	to, _ = shogi.ParsePosition("9c")
	assert.Equal(t, "９三銀不成(94)", MoveText(b, shogi.NewBoardMove(from, to, false), nil))
	assert.Equal(t, "９三銀成(94)", MoveText(b, shogi.NewBoardMove(from, to, true), nil))
}

func TestDecodeRoundTrip(t *testing.T) {
	h := history(t, bishopTrade...)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testHeader(), h))

	hdr, decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
	assert.Equal(t, testHeader(), hdr)
}

func TestDecodeShiftJIS(t *testing.T) {
	h := history(t, bishopTrade...)
	var buf bytes.Buffer
	require.NoError(t, EncodeShiftJIS(&buf, testHeader(), h))
	assert.False(t, utf8.Valid(buf.Bytes()))

	hdr, decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
	assert.Equal(t, "alice", hdr.Sente)
}

func TestDecodeAcceptsCommonVariants(t *testing.T) {
	record := strings.Join([]string{
		"開始日時：2026/03/04",
		"先手：alice",
		"後手：bob",
		"手数----指手---------消費時間--",
		"1 7六歩(77)",
		"2 ３四歩(33) ( 0:01/00:00:01)",
		"3 中断",
		"4 ２二角成(88)",
	}, "\r\n")

	hdr, h, err := Decode(strings.NewReader(record))
	require.NoError(t, err)
	assert.Equal(t, history(t, "7g7f", "3c3d"), h, "moves after the terminal line are ignored")
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), hdr.Start)
	assert.Empty(t, hdr.Winner)
}

func TestDecodeRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{name: "handicap", record: "手合割：香落ち\n"},
		{name: "unknown piece", record: "1 ７六象(77)\n"},
		{name: "same square first", record: "1 同　歩(77)\n"},
		{name: "bad rank", record: "1 ７Z歩(77)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(strings.NewReader(tt.record))
			assert.ErrorIs(t, err, ErrMalformedKIF)
		})
	}

	_, _, err := Decode(strings.NewReader("1 ７五歩(77)\n"))
	assert.ErrorIs(t, err, shogi.ErrIllegalMove)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, testHeader(), history(t, bishopTrade...)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestMoveLines(t *testing.T) {
	lines := moveLines(history(t, "7g7f", "3c3d", "2g2f", "8c8d", "2f2e", "8d8e", "6i7h"))
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "  1.7g7f"))
	assert.Contains(t, lines[1], "7.6i7h")
}

func TestParquetArchiveRoundTrip(t *testing.T) {
	h := history(t, bishopTrade...)
	m := &match.Match{
		KeyPublic:   "01234",
		Opponent:    match.OpponentBot,
		BotLevel:    3,
		PlayerSente: "alice",
		PlayerGote:  match.BotPlayerID,
		Moves:       h.Records(),
		Winner:      "gote",
		Reason:      match.ReasonResign,
		FinishedAt:  time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}
	row, err := RowOf(m)
	require.NoError(t, err)
	require.Len(t, row.MoveEvals, len(bishopTrade))
	assert.Equal(t, "8h2b+", row.MoveEvals[2].Move)
	assert.Greater(t, row.MoveEvals[2].SenteEval, row.MoveEvals[1].SenteEval, "winning the bishop raises the evaluation")

	path := filepath.Join(t.TempDir(), "archive.parquet")
	w, err := NewParquetWriter(path, 1)
	require.NoError(t, err)
	require.NoError(t, w.Write(row))
	assert.Equal(t, 1, w.Rows())
	require.NoError(t, w.Close())

	rows, err := ReadParquet(path, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row, rows[0])
}

func TestSummarize(t *testing.T) {
	rows := []ArchiveRow{
		{Opponent: "human", Winner: "sente", MoveCount: 40},
		{Opponent: "bot", BotLevel: 2, SenteName: "alice", GoteName: match.BotPlayerID, Winner: "gote", MoveCount: 60},
		{Opponent: "bot", BotLevel: 2, SenteName: match.BotPlayerID, GoteName: "bob", Winner: "gote", MoveCount: 20},
	}
	s := Summarize(rows)
	assert.Equal(t, 3, s.Matches)
	assert.Equal(t, 1, s.SenteWins)
	assert.Equal(t, 2, s.GoteWins)
	assert.InDelta(t, 40.0, s.AveragePlies, 0.001)
	assert.Equal(t, 2, s.BotGamesByLevel[2])
	assert.Equal(t, 1, s.BotWinsByLevel[2])

	assert.Zero(t, Summarize(nil).AveragePlies)
}
