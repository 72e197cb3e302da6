package puzzle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shogi_backend/internal/domain/puzzle"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/shogi"
)

type PuzzleStore interface {
	ImportDir(ctx context.Context, dir string) (int, error)
	GetPuzzle(ctx context.Context, number int) (*puzzle.Puzzle, error)
	ListPuzzles(ctx context.Context, level int) ([]puzzle.Puzzle, error)
	SolvedPuzzles(ctx context.Context, playerID string) ([]int, error)
	MarkSolved(ctx context.Context, playerID string, number int) (bool, error)
}

type PuzzleUseCase struct {
	store     PuzzleStore
	log       *zap.SugaredLogger
	pageLimit int
}

func NewPuzzleUseCase(log *zap.SugaredLogger, store PuzzleStore, pageLimit int) *PuzzleUseCase {
	if pageLimit < 1 {
		pageLimit = 10
	}
	return &PuzzleUseCase{
		store:     store,
		log:       log,
		pageLimit: pageLimit,
	}
}

func (u *PuzzleUseCase) Import(ctx context.Context, dir string) (int, error) {
	n, err := u.store.ImportDir(ctx, dir)
	if err != nil {
		return n, err
	}
	u.log.Infof("imported %d puzzles from %s", n, dir)
	return n, nil
}

// Page lists one page of a level with the player's solved marks, plus the
// first page that still has something unsolved.
func (u *PuzzleUseCase) Page(ctx context.Context, playerID string, level int, pageNum int) (*puzzle.Page, error) {
	if pageNum < 1 {
		return nil, fmt.Errorf("%w: page must be positive", errs.ErrBadRequest)
	}

	all, err := u.store.ListPuzzles(ctx, level)
	if err != nil {
		return nil, err
	}
	solved := map[int]struct{}{}
	if playerID != "" {
		numbers, err := u.store.SolvedPuzzles(ctx, playerID)
		if err != nil {
			return nil, err
		}
		for _, n := range numbers {
			solved[n] = struct{}{}
		}
	}
	for i := range all {
		all[i].Status = puzzle.StatusUnsolved
		if _, ok := solved[all[i].Number]; ok {
			all[i].Status = puzzle.StatusSolved
		}
	}
	return paginate(all, pageNum, u.pageLimit), nil
}

func paginate(all []puzzle.Puzzle, pageNum, pageLimit int) *puzzle.Page {
	pageWithUnsolved := 1
	for i, pz := range all {
		if pz.Status != puzzle.StatusSolved {
			pageWithUnsolved = i/pageLimit + 1
			break
		}
	}

	start := (pageNum - 1) * pageLimit
	if start > len(all) {
		start = len(all)
	}
	end := start + pageLimit
	if end > len(all) {
		end = len(all)
	}

	return &puzzle.Page{
		PageNum:          pageNum,
		TotalPages:       (len(all) + pageLimit - 1) / pageLimit,
		PageWithUnsolved: pageWithUnsolved,
		Puzzles:          all[start:end],
	}
}

func (u *PuzzleUseCase) Get(ctx context.Context, number int) (*puzzle.Puzzle, error) {
	return u.store.GetPuzzle(ctx, number)
}

// Solve plays the answer on the puzzle position. Illegal or malformed moves
// come back as *shogi.MoveError; a legal move that does not mate is simply
// not a solution.
func (u *PuzzleUseCase) Solve(ctx context.Context, number int, req puzzle.SolveRequest) (*puzzle.SolveResponse, error) {
	if req.PlayerID == "" {
		return nil, fmt.Errorf("%w: player_id is required", errs.ErrBadRequest)
	}
	pz, err := u.store.GetPuzzle(ctx, number)
	if err != nil {
		return nil, err
	}

	b, moveNumber, err := shogi.ParseSFEN(pz.SFEN)
	if err != nil {
		return nil, fmt.Errorf("puzzle %d has a broken position: %w", number, err)
	}
	mover := b.Turn()
	m, err := shogi.ParseUSIMove(req.Move, mover)
	if err != nil {
		return nil, err
	}
	after, err := shogi.Apply(b, m)
	if err != nil {
		return nil, err
	}

	winner, over := after.Winner()
	resp := &puzzle.SolveResponse{
		Number: number,
		Move:   shogi.FormatUSIMove(m),
		Solved: over && winner == mover,
		SFEN:   shogi.ToSFEN(after, moveNumber+1),
	}
	if !resp.Solved {
		return resp, nil
	}

	already, err := u.store.MarkSolved(ctx, req.PlayerID, number)
	if err != nil {
		return nil, err
	}
	if !already {
		u.log.Infow("puzzle solved", "player", req.PlayerID, "puzzle", number)
	}
	return resp, nil
}
