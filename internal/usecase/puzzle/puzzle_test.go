package puzzle

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shogi_backend/internal/domain/puzzle"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/shogi"
)

type memoryPuzzles struct {
	puzzles map[int]puzzle.Puzzle
	solved  map[string][]int
}

func (m *memoryPuzzles) ImportDir(ctx context.Context, dir string) (int, error) {
	return 0, nil
}

func (m *memoryPuzzles) GetPuzzle(ctx context.Context, number int) (*puzzle.Puzzle, error) {
	pz, ok := m.puzzles[number]
	if !ok {
		return nil, errs.ErrPuzzleNotFound
	}
	return &pz, nil
}

func (m *memoryPuzzles) ListPuzzles(ctx context.Context, level int) ([]puzzle.Puzzle, error) {
	var out []puzzle.Puzzle
	for _, pz := range m.puzzles {
		if pz.Level == level {
			out = append(out, pz)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memoryPuzzles) SolvedPuzzles(ctx context.Context, playerID string) ([]int, error) {
	return m.solved[playerID], nil
}

func (m *memoryPuzzles) MarkSolved(ctx context.Context, playerID string, number int) (bool, error) {
	for _, n := range m.solved[playerID] {
		if n == number {
			return true, nil
		}
	}
	m.solved[playerID] = append(m.solved[playerID], number)
	return false, nil
}

// goldDrop mates with G*5b: the pawn on 5c guards the gold.
const goldDrop = "4k4/9/4P4/9/9/9/9/9/4K4 b G 1"

func newUseCase(pageLimit int) (*PuzzleUseCase, *memoryPuzzles) {
	store := &memoryPuzzles{puzzles: map[int]puzzle.Puzzle{}, solved: map[string][]int{}}
	return NewPuzzleUseCase(zap.NewNop().Sugar(), store, pageLimit), store
}

func TestSolve(t *testing.T) {
	uc, store := newUseCase(10)
	store.puzzles[1] = puzzle.Puzzle{Number: 1, Level: 1, SFEN: goldDrop}
	ctx := context.Background()

	resp, err := uc.Solve(ctx, 1, puzzle.SolveRequest{PlayerID: "alice", Move: "G*4b"})
	require.NoError(t, err)
	assert.False(t, resp.Solved)
	assert.Empty(t, store.solved["alice"])

	resp, err = uc.Solve(ctx, 1, puzzle.SolveRequest{PlayerID: "alice", Move: "G*5b"})
	require.NoError(t, err)
	assert.True(t, resp.Solved)
	assert.Equal(t, "G*5b", resp.Move)
	assert.Equal(t, []int{1}, store.solved["alice"])

	_, err = uc.Solve(ctx, 1, puzzle.SolveRequest{PlayerID: "alice", Move: "G*5b"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, store.solved["alice"], "solving twice records once")
}

func TestSolveRejects(t *testing.T) {
	uc, store := newUseCase(10)
	store.puzzles[1] = puzzle.Puzzle{Number: 1, Level: 1, SFEN: goldDrop}
	ctx := context.Background()

	tests := []struct {
		name   string
		number int
		req    puzzle.SolveRequest
		want   error
	}{
		{name: "no player", number: 1, req: puzzle.SolveRequest{Move: "G*5b"}, want: errs.ErrBadRequest},
		{name: "missing puzzle", number: 9, req: puzzle.SolveRequest{PlayerID: "a", Move: "G*5b"}, want: errs.ErrPuzzleNotFound},
		{name: "malformed", number: 1, req: puzzle.SolveRequest{PlayerID: "a", Move: "G5b"}, want: shogi.ErrMalformedInput},
		{name: "piece not in hand", number: 1, req: puzzle.SolveRequest{PlayerID: "a", Move: "R*5b"}, want: shogi.ErrIllegalDrop},
		{name: "illegal board move", number: 1, req: puzzle.SolveRequest{PlayerID: "a", Move: "5i5g"}, want: shogi.ErrIllegalMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Solve(ctx, tt.number, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPage(t *testing.T) {
	uc, store := newUseCase(2)
	for n := 1; n <= 5; n++ {
		store.puzzles[n] = puzzle.Puzzle{Number: n, Level: 1, SFEN: goldDrop}
	}
	store.puzzles[6] = puzzle.Puzzle{Number: 6, Level: 2, SFEN: goldDrop}
	store.solved["alice"] = []int{1, 2, 3}

	page, err := uc.Page(context.Background(), "alice", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.PageWithUnsolved)
	require.Len(t, page.Puzzles, 2)
	assert.Equal(t, puzzle.StatusSolved, page.Puzzles[0].Status)

	page, err = uc.Page(context.Background(), "alice", 1, 3)
	require.NoError(t, err)
	require.Len(t, page.Puzzles, 1)
	assert.Equal(t, 5, page.Puzzles[0].Number)
	assert.Equal(t, puzzle.StatusUnsolved, page.Puzzles[0].Status)

	page, err = uc.Page(context.Background(), "", 1, 9)
	require.NoError(t, err)
	assert.Empty(t, page.Puzzles)
	assert.Equal(t, 1, page.PageWithUnsolved)

	_, err = uc.Page(context.Background(), "alice", 1, 0)
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestPaginateAllSolved(t *testing.T) {
	all := make([]puzzle.Puzzle, 3)
	for i := range all {
		all[i] = puzzle.Puzzle{Number: i + 1, Status: puzzle.StatusSolved}
	}
	page := paginate(all, 1, 2)
	assert.Equal(t, 1, page.PageWithUnsolved)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, fmt.Sprint([]int{1, 2}), fmt.Sprint([]int{page.Puzzles[0].Number, page.Puzzles[1].Number}))
}
