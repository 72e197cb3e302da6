package kifu

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"shogi_backend/internal/domain/match"
	"shogi_backend/internal/shogi"
	"shogi_backend/internal/shogi/ai"
)

// PlyEval is the static evaluation after one ply, from Sente's side.
type PlyEval struct {
	Ply       int32  `parquet:"name=ply, type=INT32"`
	Move      string `parquet:"name=move, type=BYTE_ARRAY, convertedtype=UTF8"`
	SenteEval int32  `parquet:"name=sente_eval, type=INT32"`
}

type ArchiveRow struct {
	MatchID    string    `parquet:"name=match_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Opponent   string    `parquet:"name=opponent, type=BYTE_ARRAY, convertedtype=UTF8"`
	BotLevel   int32     `parquet:"name=bot_level, type=INT32"`
	SenteName  string    `parquet:"name=sente_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	GoteName   string    `parquet:"name=gote_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Winner     string    `parquet:"name=winner, type=BYTE_ARRAY, convertedtype=UTF8"`
	WinReason  string    `parquet:"name=win_reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount  int32     `parquet:"name=move_count, type=INT32"`
	FinishedAt int64     `parquet:"name=finished_at, type=INT64"`
	MoveEvals  []PlyEval `parquet:"name=move_evals, type=LIST"`
}

// RowOf replays m and evaluates every position it passed through.
func RowOf(m *match.Match) (ArchiveRow, error) {
	h, err := shogi.HistoryFromRecords(m.Moves)
	if err != nil {
		return ArchiveRow{}, err
	}

	evals := make([]PlyEval, 0, len(h))
	b := shogi.Initial()
	for i, mv := range h {
		b, err = shogi.Apply(b, mv)
		if err != nil {
			return ArchiveRow{}, fmt.Errorf("match %s move %d: %w", m.KeyPublic, i+1, err)
		}
		evals = append(evals, PlyEval{
			Ply:       int32(i + 1),
			Move:      shogi.FormatUSIMove(mv),
			SenteEval: int32(ai.Evaluate(b, shogi.Sente)),
		})
	}

	return ArchiveRow{
		MatchID:    m.KeyPublic,
		Opponent:   string(m.Opponent),
		BotLevel:   int32(m.BotLevel),
		SenteName:  m.PlayerSente,
		GoteName:   m.PlayerGote,
		Winner:     m.Winner,
		WinReason:  string(m.Reason),
		MoveCount:  int32(len(h)),
		FinishedAt: m.FinishedAt.UnixMilli(),
		MoveEvals:  evals,
	}, nil
}

// ParquetWriter appends archive rows to a snappy compressed parquet file.
type ParquetWriter struct {
	file   source.ParquetFile
	writer *writer.ParquetWriter
	rows   int
}

func NewParquetWriter(path string, parallel int64) (*ParquetWriter, error) {
	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, err
	}
	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(ArchiveRow), parallel)
	if err != nil {
		_ = fileWriter.Close()
		return nil, err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY
	return &ParquetWriter{file: fileWriter, writer: parquetWriter}, nil
}

func (w *ParquetWriter) Write(row ArchiveRow) error {
	if err := w.writer.Write(row); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *ParquetWriter) Rows() int {
	return w.rows
}

func (w *ParquetWriter) Close() error {
	if err := w.writer.WriteStop(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func ReadParquet(path string, parallel int64) ([]ArchiveRow, error) {
	fileReader, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fileReader.Close()

	parquetReader, err := reader.NewParquetReader(fileReader, new(ArchiveRow), parallel)
	if err != nil {
		return nil, err
	}
	defer parquetReader.ReadStop()

	num := int(parquetReader.GetNumRows())
	rows := make([]ArchiveRow, 0, num)
	batchSize := 256
	for offset := 0; offset < num; offset += batchSize {
		if remain := num - offset; remain < batchSize {
			batchSize = remain
		}
		batch := make([]ArchiveRow, batchSize)
		if err := parquetReader.Read(&batch); err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}

type Summary struct {
	Matches      int
	SenteWins    int
	GoteWins     int
	AveragePlies float64
	// Keyed by bot level; a bot win counts when the bot's side won.
	BotGamesByLevel map[int]int
	BotWinsByLevel  map[int]int
}

func Summarize(rows []ArchiveRow) Summary {
	s := Summary{
		BotGamesByLevel: map[int]int{},
		BotWinsByLevel:  map[int]int{},
	}
	totalPlies := 0
	for _, row := range rows {
		s.Matches++
		totalPlies += int(row.MoveCount)
		switch row.Winner {
		case shogi.Sente.String():
			s.SenteWins++
		case shogi.Gote.String():
			s.GoteWins++
		}

		if row.Opponent != string(match.OpponentBot) {
			continue
		}
		level := int(row.BotLevel)
		s.BotGamesByLevel[level]++
		botSide := shogi.Gote.String()
		if row.SenteName == match.BotPlayerID {
			botSide = shogi.Sente.String()
		}
		if row.Winner == botSide {
			s.BotWinsByLevel[level]++
		}
	}
	if s.Matches > 0 {
		s.AveragePlies = float64(totalPlies) / float64(s.Matches)
	}
	return s
}
