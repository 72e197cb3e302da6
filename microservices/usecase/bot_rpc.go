package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"shogi_backend/internal/shogi"
	"shogi_backend/internal/shogi/ai"
	"shogi_backend/microservices/botrpc"
)

// MoveGenerator searches a position given as SFEN. Decide must not return
// before the search it started has stopped, since BotUseCase frees the slot
// when Decide returns.
type MoveGenerator interface {
	Decide(ctx context.Context, sfen string, level int) (ai.Decision, error)
}

type MoveGeneratorFunc func(ctx context.Context, sfen string, level int) (ai.Decision, error)

func (f MoveGeneratorFunc) Decide(ctx context.Context, sfen string, level int) (ai.Decision, error) {
	return f(ctx, sfen, level)
}

// BotUseCase serves BestMove with at most maxParallel searches at a time.
// Callers beyond the limit wait until a slot frees or their deadline passes.
// A caller that gives up mid-search gets its status at once, but the slot
// stays taken until the search ends.
type BotUseCase struct {
	engine MoveGenerator
	sem    *semaphore.Weighted
	log    *zap.SugaredLogger
}

func NewBotUseCase(engine MoveGenerator, maxParallel int64, log *zap.SugaredLogger) *BotUseCase {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &BotUseCase{
		engine: engine,
		sem:    semaphore.NewWeighted(maxParallel),
		log:    log,
	}
}

func (b *BotUseCase) BestMove(ctx context.Context, in *botrpc.BestMoveRequest) (*botrpc.BestMoveResponse, error) {
	if in.SFEN == "" {
		return nil, status.Error(codes.InvalidArgument, "sfen is required")
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	type result struct {
		decision ai.Decision
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer b.sem.Release(1)
		d, err := b.engine.Decide(ctx, in.SFEN, in.Level)
		done <- result{decision: d, err: err}
	}()

	var decision ai.Decision
	select {
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	case r := <-done:
		if r.err != nil {
			b.log.Warnw("search failed", "level", in.Level, "sfen", in.SFEN, "error", r.err)
			return nil, toStatus(r.err)
		}
		decision = r.decision
	}

	return &botrpc.BestMoveResponse{
		Move:  shogi.FormatUSIMove(decision.Move),
		Score: decision.Score,
		Nodes: decision.Nodes,
	}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, ai.ErrUnknownLevel), errors.Is(err, shogi.ErrMalformedInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ai.ErrGameOver), errors.Is(err, ai.ErrNoLegalMoves):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
