package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"shogi_backend/internal/domain/puzzle"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/shogi"
)

const (
	puzzlesCollection = "puzzles"
	playersCollection = "players"
)

var chapterRe = regexp.MustCompile(`(?i)^Chapter (\d+)$`)

type PuzzleStorage struct {
	log   *zap.SugaredLogger
	mongo *mongo.Database
}

func NewPuzzleStorage(log *zap.SugaredLogger, mongo *mongo.Database) *PuzzleStorage {
	return &PuzzleStorage{
		log:   log,
		mongo: mongo,
	}
}

// ImportDir stores every .sfen file found under dir. Re-importing a puzzle
// number replaces the stored one.
func (p *PuzzleStorage) ImportDir(ctx context.Context, dir string) (int, error) {
	imported := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".sfen") {
			return nil
		}

		pz, err := ReadPuzzleFile(path)
		if err != nil {
			return fmt.Errorf("read puzzle %s: %w", path, err)
		}
		if err = p.savePuzzle(ctx, pz); err != nil {
			return fmt.Errorf("store puzzle %s: %w", path, err)
		}
		imported++
		return nil
	})
	return imported, err
}

// ReadPuzzleFile parses a file named <number>.sfen holding one SFEN line.
func ReadPuzzleFile(path string) (*puzzle.Puzzle, error) {
	filename := filepath.Base(path)
	number, err := strconv.Atoi(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("puzzle file name must be a number: %w", err)
	}
	level, _ := ExtractChapterIndex(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sfen := strings.TrimSpace(string(data))
	if _, _, err = shogi.ParseSFEN(sfen); err != nil {
		return nil, err
	}

	return &puzzle.Puzzle{
		Number: number,
		Level:  level,
		SFEN:   sfen,
	}, nil
}

// ExtractChapterIndex finds the N of a "Chapter N" directory in path.
func ExtractChapterIndex(path string) (int, bool) {
	for _, dir := range strings.Split(filepath.ToSlash(path), "/") {
		if m := chapterRe.FindStringSubmatch(dir); len(m) == 2 {
			index, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, false
			}
			return index, true
		}
	}
	return 0, false
}

func (p *PuzzleStorage) savePuzzle(ctx context.Context, pz *puzzle.Puzzle) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.mongo.Collection(puzzlesCollection).ReplaceOne(ctx,
		bson.M{"puzzle_number": pz.Number}, pz, options.Replace().SetUpsert(true))
	return err
}

func (p *PuzzleStorage) GetPuzzle(ctx context.Context, number int) (*puzzle.Puzzle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var pz puzzle.Puzzle
	err := p.mongo.Collection(puzzlesCollection).FindOne(ctx, bson.M{"puzzle_number": number}).Decode(&pz)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrPuzzleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pz, nil
}

// ListPuzzles returns every puzzle of a level ordered by number.
func (p *PuzzleStorage) ListPuzzles(ctx context.Context, level int) ([]puzzle.Puzzle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "puzzle_number", Value: 1}})
	cursor, err := p.mongo.Collection(puzzlesCollection).Find(ctx, bson.M{"puzzle_level": level}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var all []puzzle.Puzzle
	if err = cursor.All(ctx, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (p *PuzzleStorage) SolvedPuzzles(ctx context.Context, playerID string) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var player struct {
		Solved []int `bson:"solved_puzzles"`
	}
	err := p.mongo.Collection(playersCollection).FindOne(ctx, bson.M{"_id": playerID}).Decode(&player)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return player.Solved, nil
}

// MarkSolved records the puzzle for the player and reports whether it was
// already there.
func (p *PuzzleStorage) MarkSolved(ctx context.Context, playerID string, number int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$addToSet": bson.M{"solved_puzzles": number}}
	res, err := p.mongo.Collection(playersCollection).UpdateByID(ctx, playerID, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("mark puzzle %d solved: %w", number, err)
	}
	return res.ModifiedCount == 0 && res.UpsertedCount == 0, nil
}
