// Package botrpc is the wire contract of the bot service. Messages travel as
// JSON over gRPC, so no generated code is involved.
package botrpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	ServiceName    = "shogi.bot.BotService"
	BestMoveMethod = "/" + ServiceName + "/BestMove"
)

type BestMoveRequest struct {
	SFEN  string `json:"sfen"`
	Level int    `json:"level"`
}

type BestMoveResponse struct {
	Move  string `json:"move"`
	Score int    `json:"score"`
	Nodes int    `json:"nodes"`
}

// Codec marshals messages as JSON. It is selected with the "json" content
// subtype.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return "json"
}

func init() {
	encoding.RegisterCodec(Codec{})
}

type BotServiceServer interface {
	BestMove(context.Context, *BestMoveRequest) (*BestMoveResponse, error)
}

func RegisterBotServiceServer(s grpc.ServiceRegistrar, srv BotServiceServer) {
	s.RegisterService(&BotServiceDesc, srv)
}

func bestMoveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BestMoveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BotServiceServer).BestMove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: BestMoveMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BotServiceServer).BestMove(ctx, req.(*BestMoveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var BotServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "BestMove",
			Handler:    bestMoveHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

type BotServiceClient interface {
	BestMove(ctx context.Context, in *BestMoveRequest, opts ...grpc.CallOption) (*BestMoveResponse, error)
}

type botServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBotServiceClient(cc grpc.ClientConnInterface) BotServiceClient {
	return &botServiceClient{cc: cc}
}

func (c *botServiceClient) BestMove(ctx context.Context, in *BestMoveRequest, opts ...grpc.CallOption) (*BestMoveResponse, error) {
	out := new(BestMoveResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec{}.Name())}, opts...)
	if err := c.cc.Invoke(ctx, BestMoveMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
