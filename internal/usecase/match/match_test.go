package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shogi_backend/internal/bootstrap"
	"shogi_backend/internal/domain/match"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/shogi"
)

type memoryStore struct {
	mu      sync.Mutex
	matches map[string]match.Match
	next    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{matches: map[string]match.Match{}}
}

func clone(m match.Match) *match.Match {
	m.Moves = append([]shogi.MoveRecord(nil), m.Moves...)
	return &m
}

func (s *memoryStore) GenerateMatchKeys(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("secret-%d", s.next), fmt.Sprintf("%05d", s.next), nil
}

func (s *memoryStore) CreateMatch(ctx context.Context, play *match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[play.KeySecret] = *clone(*play)
	return nil
}

func (s *memoryStore) GetMatch(ctx context.Context, key string) (*match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[key]; ok {
		return clone(m), nil
	}
	for _, m := range s.matches {
		if m.KeyPublic == key && m.Status != match.StatusFinished {
			return clone(m), nil
		}
	}
	return nil, errs.ErrMatchNotFound
}

func (s *memoryStore) SaveMatch(ctx context.Context, play *match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[play.KeySecret]; !ok {
		return errs.ErrMatchNotFound
	}
	s.matches[play.KeySecret] = *clone(*play)
	return nil
}

func (s *memoryStore) ListFinished(ctx context.Context, pageNum int, pageLimit int) ([]match.Match, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var finished []match.Match
	for _, m := range s.matches {
		if m.Status == match.StatusFinished {
			finished = append(finished, m)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].KeySecret < finished[j].KeySecret })
	start := (pageNum - 1) * pageLimit
	if start > len(finished) {
		start = len(finished)
	}
	end := start + pageLimit
	if end > len(finished) {
		end = len(finished)
	}
	return finished[start:end], int64(len(finished)), nil
}

// scriptedBot replies with queued moves and fails once the queue is empty.
type scriptedBot struct {
	mu     sync.Mutex
	moves  []string
	levels []int
	err    error
}

func (b *scriptedBot) BestMove(ctx context.Context, sfen string, level int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels = append(b.levels, level)
	if b.err != nil {
		return "", b.err
	}
	if len(b.moves) == 0 {
		return "", errors.New("no scripted move")
	}
	move := b.moves[0]
	b.moves = b.moves[1:]
	return move, nil
}

func newUseCase(t *testing.T, bot BotMover) (*MatchUseCase, *memoryStore) {
	t.Helper()
	cfg := &bootstrap.Config{DefaultBotLevel: 2, PageLimitGames: 2, BotTimeoutSec: 5}
	store := newMemoryStore()
	uc := NewMatchUseCase(cfg, zap.NewNop().Sugar(), store, bot)
	uc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return uc, store
}

func humanMatch(t *testing.T, uc *MatchUseCase) string {
	t.Helper()
	ctx := context.Background()
	created, err := uc.CreateMatch(ctx, match.CreateMatchRequest{PlayerID: "alice"})
	require.NoError(t, err)
	_, err = uc.JoinMatch(ctx, created.KeyPublic, match.JoinRequest{PlayerID: "bob"})
	require.NoError(t, err)
	return created.KeySecret
}

func TestCreateAndJoinHumanMatch(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	ctx := context.Background()

	created, err := uc.CreateMatch(ctx, match.CreateMatchRequest{PlayerID: "alice", Side: "gote"})
	require.NoError(t, err)
	assert.Equal(t, match.StatusWaitOpponent, created.State.Status)
	assert.Equal(t, "alice", created.State.PlayerGote)
	assert.Equal(t, shogi.InitialSFEN, created.State.SFEN)

	joined, err := uc.JoinMatch(ctx, created.KeyPublic, match.JoinRequest{PlayerID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "sente", joined.Side)
	assert.Equal(t, created.KeySecret, joined.KeySecret)
	assert.Equal(t, match.StatusActive, joined.State.Status)

	again, err := uc.JoinMatch(ctx, created.KeySecret, match.JoinRequest{PlayerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "gote", again.Side)

	_, err = uc.JoinMatch(ctx, created.KeySecret, match.JoinRequest{PlayerID: "carol"})
	assert.ErrorIs(t, err, errs.ErrSideTaken)
}

func TestCreateMatchRejectsBadRequests(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	cases := []match.CreateMatchRequest{
		{},
		{PlayerID: match.BotPlayerID},
		{PlayerID: "alice", Opponent: "alien"},
		{PlayerID: "alice", Side: "north"},
		{PlayerID: "alice", Opponent: match.OpponentBot, Level: 9},
	}
	for _, req := range cases {
		_, err := uc.CreateMatch(context.Background(), req)
		assert.ErrorIs(t, err, errs.ErrBadRequest, "%+v", req)
	}
}

func TestPlayMoveEnforcesTurnsAndRules(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	ctx := context.Background()
	key := humanMatch(t, uc)

	state, err := uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Ply)
	assert.Equal(t, "7g7f", state.LastMove)
	assert.Equal(t, "gote", state.Board.Turn)

	_, err = uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "alice", Move: "2g2f"})
	assert.ErrorIs(t, err, errs.ErrNotYourTurn)

	_, err = uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "carol", Move: "3c3d"})
	assert.ErrorIs(t, err, errs.ErrNotParticipant)

	_, err = uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "bob", Move: "3c3a"})
	assert.ErrorIs(t, err, shogi.ErrIllegalMove)

	_, err = uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "bob", Move: "nonsense"})
	assert.ErrorIs(t, err, shogi.ErrMalformedInput)

	state, err = uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "bob", Move: "3c3d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"7g7f", "3c3d"}, state.Moves)
}

func TestPlayMoveNeedsAnOpponent(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	created, err := uc.CreateMatch(context.Background(), match.CreateMatchRequest{PlayerID: "alice"})
	require.NoError(t, err)

	_, err = uc.PlayMove(context.Background(), created.KeySecret, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
	assert.ErrorIs(t, err, errs.ErrMatchNotStarted)
}

func TestBotRepliesAfterPlayerMove(t *testing.T) {
	bot := &scriptedBot{moves: []string{"3c3d"}}
	uc, _ := newUseCase(t, bot)
	ctx := context.Background()

	created, err := uc.CreateMatch(ctx, match.CreateMatchRequest{PlayerID: "alice", Opponent: match.OpponentBot, Level: 3})
	require.NoError(t, err)
	assert.Equal(t, match.StatusActive, created.State.Status)
	assert.Equal(t, match.BotPlayerID, created.State.PlayerGote)
	assert.False(t, created.State.AwaitingBot)

	state, err := uc.PlayMove(ctx, created.KeySecret, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Ply)
	assert.Equal(t, "3c3d", state.LastMove)
	assert.Equal(t, []int{3}, bot.levels)
}

func TestBotMovesFirstWhenPlayingSente(t *testing.T) {
	bot := &scriptedBot{moves: []string{"2g2f"}}
	uc, _ := newUseCase(t, bot)

	created, err := uc.CreateMatch(context.Background(), match.CreateMatchRequest{PlayerID: "alice", Opponent: match.OpponentBot, Side: "gote"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.State.Ply)
	assert.Equal(t, "gote", created.State.Board.Turn)
	assert.Equal(t, []int{2}, bot.levels, "default level")
}

func TestFailedBotReplyCanBeRetried(t *testing.T) {
	bot := &scriptedBot{err: errors.New("bot down")}
	uc, store := newUseCase(t, bot)
	ctx := context.Background()

	created, err := uc.CreateMatch(ctx, match.CreateMatchRequest{PlayerID: "alice", Opponent: match.OpponentBot})
	require.NoError(t, err)

	state, err := uc.PlayMove(ctx, created.KeySecret, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Ply)
	assert.True(t, state.AwaitingBot)

	_, err = uc.RequestBotMove(ctx, created.KeySecret, match.BotMoveRequest{PlayerID: "alice"})
	assert.ErrorIs(t, err, errs.ErrBotUnavailable)

	bot.err = nil
	bot.moves = []string{"8c8d"}
	state, err = uc.RequestBotMove(ctx, created.KeySecret, match.BotMoveRequest{PlayerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Ply)
	assert.False(t, state.AwaitingBot)

	stored, err := store.GetMatch(ctx, created.KeySecret)
	require.NoError(t, err)
	assert.Len(t, stored.Moves, 2)

	_, err = uc.RequestBotMove(ctx, created.KeySecret, match.BotMoveRequest{PlayerID: "alice"})
	assert.ErrorIs(t, err, errs.ErrNotYourTurn)
}

func TestIllegalBotMoveIsRejected(t *testing.T) {
	bot := &scriptedBot{moves: []string{"5a5c"}}
	uc, _ := newUseCase(t, bot)
	ctx := context.Background()

	created, err := uc.CreateMatch(ctx, match.CreateMatchRequest{PlayerID: "alice", Opponent: match.OpponentBot})
	require.NoError(t, err)

	state, err := uc.PlayMove(ctx, created.KeySecret, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Ply)
	assert.True(t, state.AwaitingBot)
}

func TestUndo(t *testing.T) {
	ctx := context.Background()

	t.Run("human match takes back one ply", func(t *testing.T) {
		uc, _ := newUseCase(t, &scriptedBot{})
		key := humanMatch(t, uc)

		_, err := uc.Undo(ctx, key, match.UndoRequest{PlayerID: "alice"})
		assert.ErrorIs(t, err, errs.ErrNothingToUndo)

		for _, m := range []match.MoveRequest{{PlayerID: "alice", Move: "7g7f"}, {PlayerID: "bob", Move: "3c3d"}} {
			_, err = uc.PlayMove(ctx, key, m)
			require.NoError(t, err)
		}

		state, err := uc.Undo(ctx, key, match.UndoRequest{PlayerID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, []string{"7g7f"}, state.Moves)
		assert.Equal(t, "gote", state.Board.Turn)

		_, err = uc.Undo(ctx, key, match.UndoRequest{PlayerID: "alice", Count: 5})
		assert.ErrorIs(t, err, errs.ErrBadRequest)
	})

	t.Run("bot match takes back the reply too", func(t *testing.T) {
		uc, _ := newUseCase(t, &scriptedBot{moves: []string{"3c3d", "8c8d"}})
		created, err := uc.CreateMatch(ctx, match.CreateMatchRequest{PlayerID: "alice", Opponent: match.OpponentBot})
		require.NoError(t, err)

		for _, m := range []string{"7g7f", "2g2f"} {
			_, err = uc.PlayMove(ctx, created.KeySecret, match.MoveRequest{PlayerID: "alice", Move: m})
			require.NoError(t, err)
		}

		state, err := uc.Undo(ctx, created.KeySecret, match.UndoRequest{PlayerID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, []string{"7g7f", "3c3d"}, state.Moves)
		assert.Equal(t, "sente", state.Board.Turn)
	})
}

func TestPliesForOwnMoves(t *testing.T) {
	tests := []struct {
		plies int
		side  shogi.Side
		count int
		want  int
	}{
		{plies: 4, side: shogi.Sente, count: 1, want: 2},
		{plies: 3, side: shogi.Sente, count: 1, want: 1},
		{plies: 4, side: shogi.Gote, count: 1, want: 1},
		{plies: 4, side: shogi.Sente, count: 2, want: 4},
		{plies: 1, side: shogi.Gote, count: 1, want: 0},
		{plies: 0, side: shogi.Sente, count: 1, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pliesForOwnMoves(tt.plies, tt.side, tt.count), "%+v", tt)
	}
}

func TestResign(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	ctx := context.Background()
	key := humanMatch(t, uc)

	state, err := uc.Resign(ctx, key, match.ResignRequest{PlayerID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, match.StatusFinished, state.Status)
	assert.Equal(t, "sente", state.Winner)
	assert.Equal(t, match.ReasonResign, state.Reason)

	_, err = uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
	assert.ErrorIs(t, err, errs.ErrMatchFinished)
}

func TestRecordFinishesMatchOnCheckmate(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	b, _, err := shogi.ParseSFEN("4k4/9/4P4/9/9/9/9/9/4K4 b G 1")
	require.NoError(t, err)
	to, err := shogi.ParsePosition("5b")
	require.NoError(t, err)
	mate := shogi.NewDrop(shogi.Gold, to, shogi.Sente)
	next, err := shogi.Apply(b, mate)
	require.NoError(t, err)

	play := &match.Match{Status: match.StatusActive}
	uc.record(play, next, shogi.History{mate})

	assert.Equal(t, match.StatusFinished, play.Status)
	assert.Equal(t, "sente", play.Winner)
	assert.Equal(t, match.ReasonCheckmate, play.Reason)
	assert.Len(t, play.Moves, 1)
}

func TestRecordFinishesMatchWhenNoMoveIsLeft(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	b, _, err := shogi.ParseSFEN("8k/9/R6L1/9/9/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	m, err := shogi.ParseUSIMove("9c9b", shogi.Sente)
	require.NoError(t, err)
	next, err := shogi.Apply(b, m)
	require.NoError(t, err)
	require.False(t, next.Check())

	play := &match.Match{Status: match.StatusActive}
	uc.record(play, next, shogi.History{m})

	assert.Equal(t, match.StatusFinished, play.Status)
	assert.Equal(t, "sente", play.Winner)
	assert.Equal(t, match.ReasonNoMoves, play.Reason)
}

func TestLegalTargets(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	ctx := context.Background()
	key := humanMatch(t, uc)

	targets, err := uc.LegalTargets(ctx, key, "7g", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"7f"}, targets.Targets)
	assert.Empty(t, targets.Promotable)

	targets, err = uc.LegalTargets(ctx, key, "", "pawn")
	require.NoError(t, err)
	assert.Empty(t, targets.Targets)

	targets, err = uc.LegalTargets(ctx, key, "5e", "")
	require.NoError(t, err)
	assert.Empty(t, targets.Targets)

	_, err = uc.LegalTargets(ctx, key, "", "")
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	_, err = uc.LegalTargets(ctx, key, "z9", "")
	assert.ErrorIs(t, err, shogi.ErrMalformedInput)
}

func TestArchivePages(t *testing.T) {
	uc, _ := newUseCase(t, &scriptedBot{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		key := humanMatch(t, uc)
		_, err := uc.Resign(ctx, key, match.ResignRequest{PlayerID: "alice"})
		require.NoError(t, err)
	}
	humanMatch(t, uc)

	page, err := uc.Archive(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Matches, 2)
	assert.Equal(t, "gote", page.Matches[0].Winner)

	page, err = uc.Archive(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, page.Matches, 1)

	_, err = uc.Archive(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestConcurrentMovesAreSerialised(t *testing.T) {
	uc, store := newUseCase(t, &scriptedBot{})
	ctx := context.Background()
	key := humanMatch(t, uc)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.PlayMove(ctx, key, match.MoveRequest{PlayerID: "alice", Move: "7g7f"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)

	stored, err := store.GetMatch(ctx, key)
	require.NoError(t, err)
	assert.Len(t, stored.Moves, 1)
}
