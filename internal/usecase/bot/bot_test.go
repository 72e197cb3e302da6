package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"shogi_backend/internal/shogi"
	"shogi_backend/internal/shogi/ai"
	"shogi_backend/microservices/botrpc"
)

const mateInOne = "4k4/9/4P4/9/9/9/9/9/4K4 b G 1"

func TestLocalMoverFindsMate(t *testing.T) {
	mover := NewLocalMover(zap.NewNop().Sugar())
	move, err := mover.BestMove(context.Background(), mateInOne, 3)
	require.NoError(t, err)
	assert.Equal(t, "G*5b", move)
}

func TestDecideRejectsBadInput(t *testing.T) {
	_, err := Decide(context.Background(), "not a position", 2)
	assert.ErrorIs(t, err, shogi.ErrMalformedInput)

	_, err = Decide(context.Background(), shogi.InitialSFEN, 7)
	assert.ErrorIs(t, err, ai.ErrUnknownLevel)
}

func TestDecideHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decide(ctx, shogi.InitialSFEN, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchRunsToCompletion(t *testing.T) {
	d, err := Search(context.Background(), mateInOne, 3)
	require.NoError(t, err)
	assert.Equal(t, "G*5b", shogi.FormatUSIMove(d.Move))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Search(ctx, mateInOne, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecidePlaysForSideToMove(t *testing.T) {
	d, err := Decide(context.Background(), "4k4/9/9/9/9/9/9/9/4K4 w - 1", 2)
	require.NoError(t, err)
	require.False(t, d.Move.IsDrop())
	assert.Equal(t, 0, d.Move.From.Row, "only the gote king may move")
}

type fakeClient struct {
	req  *botrpc.BestMoveRequest
	resp *botrpc.BestMoveResponse
	err  error
}

func (f *fakeClient) BestMove(ctx context.Context, in *botrpc.BestMoveRequest, opts ...grpc.CallOption) (*botrpc.BestMoveResponse, error) {
	f.req = in
	return f.resp, f.err
}

func TestRemoteMover(t *testing.T) {
	client := &fakeClient{resp: &botrpc.BestMoveResponse{Move: "7g7f"}}
	mover := NewRemoteMover(client, zap.NewNop().Sugar())

	move, err := mover.BestMove(context.Background(), shogi.InitialSFEN, 3)
	require.NoError(t, err)
	assert.Equal(t, "7g7f", move)
	assert.Equal(t, &botrpc.BestMoveRequest{SFEN: shogi.InitialSFEN, Level: 3}, client.req)

	client.err = errors.New("unavailable")
	_, err = mover.BestMove(context.Background(), shogi.InitialSFEN, 3)
	assert.ErrorContains(t, err, "bot service")
}
