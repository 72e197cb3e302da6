package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"shogi_backend/internal/adapters"
	"shogi_backend/internal/bootstrap"
	"shogi_backend/internal/domain/match"
	"shogi_backend/internal/kifu"
	"shogi_backend/internal/repository"
	"shogi_backend/internal/shogi"
	puzzleUseCase "shogi_backend/internal/usecase/puzzle"
)

func main() {
	logger := NewLogger()
	defer logger.Sync()

	app := &cli.App{
		Name:  "kifu",
		Usage: "export, convert and archive shogi game records",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: ".env", Usage: "path to the .env config"},
		},
		Commands: []*cli.Command{
			kifCommand(logger),
			pdfCommand(logger),
			parquetCommand(logger),
			statsCommand(logger),
			importPuzzlesCommand(logger),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal("kifu failed", zap.Error(err))
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

// record is a game loaded either from a KIF file or from the match store.
type record struct {
	header  kifu.Header
	history shogi.History
}

func kifCommand(log *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "kif",
		Usage: "write a match (--key) or re-encode a KIF file (--input) as KIF",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "secret key of a stored match"},
			&cli.StringFlag{Name: "input", Usage: "KIF file, UTF-8 or Shift-JIS"},
			&cli.StringFlag{Name: "output", Usage: "output file, stdout when empty"},
			&cli.BoolFlag{Name: "utf8", Usage: "write UTF-8 instead of Shift-JIS"},
		},
		Action: func(c *cli.Context) error {
			rec, err := loadRecord(c, log)
			if err != nil {
				return err
			}
			return withOutput(c.String("output"), func(w io.Writer) error {
				if c.Bool("utf8") {
					return kifu.Encode(w, rec.header, rec.history)
				}
				return kifu.EncodeShiftJIS(w, rec.header, rec.history)
			})
		},
	}
}

func pdfCommand(log *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "pdf",
		Usage: "render a match (--key) or a KIF file (--input) as a PDF sheet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "secret key of a stored match"},
			&cli.StringFlag{Name: "input", Usage: "KIF file, UTF-8 or Shift-JIS"},
			&cli.StringFlag{Name: "output", Value: "game.pdf", Usage: "output PDF file"},
		},
		Action: func(c *cli.Context) error {
			rec, err := loadRecord(c, log)
			if err != nil {
				return err
			}
			return withOutput(c.String("output"), func(w io.Writer) error {
				return kifu.WritePDF(w, rec.header, rec.history)
			})
		},
	}
}

func parquetCommand(log *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "parquet",
		Usage: "archive finished matches with per-move evaluations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Value: "archive.parquet", Usage: "output parquet file"},
			&cli.StringFlag{Name: "since", Usage: "only matches finished on or after this date (2006-01-02)"},
			&cli.Int64Flag{Name: "parallel", Value: 4, Usage: "parquet writer parallelism"},
		},
		Action: func(c *cli.Context) error {
			var since time.Time
			if raw := c.String("since"); raw != "" {
				var err error
				if since, err = time.Parse("2006-01-02", raw); err != nil {
					return fmt.Errorf("--since: %w", err)
				}
			}

			cfg, mongoAdapter, err := connect(c, log)
			if err != nil {
				return err
			}
			defer mongoAdapter.Close(context.Background())
			repo := repository.NewMatchRepository(cfg, log, nil, mongoAdapter.Database)

			pw, err := kifu.NewParquetWriter(c.String("output"), c.Int64("parallel"))
			if err != nil {
				return err
			}
			skipped := 0
			err = repo.FinishedSince(c.Context, since, func(m *match.Match) error {
				row, err := kifu.RowOf(m)
				if err != nil {
					log.Warnw("skipping unreadable match", "match", m.KeyPublic, "error", err)
					skipped++
					return nil
				}
				return pw.Write(row)
			})
			if closeErr := pw.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			log.Infof("wrote %d matches to %s (%d skipped)", pw.Rows(), c.String("output"), skipped)
			return nil
		},
	}
}

func statsCommand(log *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "summarise a parquet archive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Value: "archive.parquet", Usage: "parquet archive"},
			&cli.Int64Flag{Name: "parallel", Value: 4, Usage: "parquet reader parallelism"},
		},
		Action: func(c *cli.Context) error {
			rows, err := kifu.ReadParquet(c.String("input"), c.Int64("parallel"))
			if err != nil {
				return err
			}
			s := kifu.Summarize(rows)
			fmt.Fprintf(c.App.Writer, "matches: %d\n", s.Matches)
			fmt.Fprintf(c.App.Writer, "sente wins: %d, gote wins: %d\n", s.SenteWins, s.GoteWins)
			fmt.Fprintf(c.App.Writer, "average length: %.1f plies\n", s.AveragePlies)
			for level, wins := range s.BotWinsByLevel {
				fmt.Fprintf(c.App.Writer, "bot level %d: %d/%d won\n", level, wins, s.BotGamesByLevel[level])
			}
			return nil
		},
	}
}

func importPuzzlesCommand(log *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "import-puzzles",
		Usage: "load .sfen puzzle files into the puzzles collection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Required: true, Usage: "directory with Chapter N subdirectories"},
		},
		Action: func(c *cli.Context) error {
			cfg, mongoAdapter, err := connect(c, log)
			if err != nil {
				return err
			}
			defer mongoAdapter.Close(context.Background())

			uc := puzzleUseCase.NewPuzzleUseCase(log, repository.NewPuzzleStorage(log, mongoAdapter.Database), cfg.PageLimitPuzzles)
			_, err = uc.Import(c.Context, c.String("dir"))
			return err
		},
	}
}

func connect(c *cli.Context, log *zap.SugaredLogger) (*bootstrap.Config, *adapters.AdapterMongo, error) {
	cfg, err := bootstrap.Setup(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	mongoAdapter := adapters.NewAdapterMongo(cfg, log)
	if err = mongoAdapter.Init(c.Context); err != nil {
		return nil, nil, err
	}
	return cfg, mongoAdapter, nil
}

func loadRecord(c *cli.Context, log *zap.SugaredLogger) (*record, error) {
	switch {
	case c.String("input") != "":
		f, err := os.Open(c.String("input"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		hdr, h, err := kifu.Decode(f)
		if err != nil {
			return nil, err
		}
		return &record{header: hdr, history: h}, nil

	case c.String("key") != "":
		cfg, mongoAdapter, err := connect(c, log)
		if err != nil {
			return nil, err
		}
		defer mongoAdapter.Close(context.Background())

		repo := repository.NewMatchRepository(cfg, log, nil, mongoAdapter.Database)
		m, err := repo.GetMatch(c.Context, c.String("key"))
		if err != nil {
			return nil, err
		}
		_, h, err := m.Replay()
		if err != nil {
			return nil, err
		}
		return &record{header: kifu.HeaderOf(m), history: h}, nil

	default:
		return nil, fmt.Errorf("either --key or --input is required")
	}
}

func withOutput(path string, write func(w io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
