package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shogi_backend/internal/shogi"
	"shogi_backend/internal/shogi/ai"
	"shogi_backend/microservices/botrpc"
)

// Search parses sfen and searches it for the side to move. It only checks
// ctx before starting; once running, the search goes to completion.
func Search(ctx context.Context, sfen string, level int) (ai.Decision, error) {
	b, _, err := shogi.ParseSFEN(sfen)
	if err != nil {
		return ai.Decision{}, err
	}
	if _, err = ai.StrategyFor(level); err != nil {
		return ai.Decision{}, err
	}
	if err = ctx.Err(); err != nil {
		return ai.Decision{}, err
	}
	return ai.Search(b, b.Turn(), level)
}

// Decide is Search that returns ctx.Err() as soon as ctx ends. The search
// itself finishes in the background.
func Decide(ctx context.Context, sfen string, level int) (ai.Decision, error) {
	type result struct {
		decision ai.Decision
		err      error
	}
	done := make(chan result, 1)
	go func() {
		d, err := Search(ctx, sfen, level)
		done <- result{decision: d, err: err}
	}()

	select {
	case <-ctx.Done():
		return ai.Decision{}, ctx.Err()
	case r := <-done:
		return r.decision, r.err
	}
}

// LocalMover runs the search in process.
type LocalMover struct {
	log *zap.SugaredLogger
}

func NewLocalMover(log *zap.SugaredLogger) *LocalMover {
	return &LocalMover{log: log}
}

func (l *LocalMover) BestMove(ctx context.Context, sfen string, level int) (string, error) {
	d, err := Decide(ctx, sfen, level)
	if err != nil {
		return "", err
	}
	l.log.Debugw("bot move", "level", level, "move", d.Move.String(), "score", d.Score, "nodes", d.Nodes)
	return shogi.FormatUSIMove(d.Move), nil
}

// RemoteMover asks the bot service over gRPC.
type RemoteMover struct {
	client botrpc.BotServiceClient
	log    *zap.SugaredLogger
}

func NewRemoteMover(client botrpc.BotServiceClient, log *zap.SugaredLogger) *RemoteMover {
	return &RemoteMover{client: client, log: log}
}

func (r *RemoteMover) BestMove(ctx context.Context, sfen string, level int) (string, error) {
	resp, err := r.client.BestMove(ctx, &botrpc.BestMoveRequest{SFEN: sfen, Level: level})
	if err != nil {
		return "", fmt.Errorf("bot service: %w", err)
	}
	r.log.Debugw("bot move", "level", level, "move", resp.Move, "score", resp.Score, "nodes", resp.Nodes)
	return resp.Move, nil
}
