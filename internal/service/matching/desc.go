package matching

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/server"
	"github.com/oggyb/muzz-matching/internal/service/discovery"
	"github.com/oggyb/muzz-matching/internal/service/likes"
	"github.com/oggyb/muzz-matching/internal/service/matches"
	"github.com/oggyb/muzz-matching/internal/service/swipe"
)

const ServiceName = "matching.v1.MatchingService"

// Server is the handler contract of the Matching service.
type Server interface {
	Swipe(context.Context, *SwipeRequest) (*swipe.Result, error)
	Undo(context.Context, *UndoRequest) (*swipe.UndoResult, error)
	GetCards(context.Context, *GetCardsRequest) (*discovery.Page, error)
	GetCardDetail(context.Context, *GetCardDetailRequest) (*model.CardDetail, error)
	GetLikes(context.Context, *GetLikesRequest) (*likes.Page, error)
	RevealLike(context.Context, *RevealLikeRequest) (*likes.RevealResult, error)
	GetMatches(context.Context, *GetMatchesRequest) (*matches.Page, error)
	Unmatch(context.Context, *UnmatchRequest) (*matches.UnmatchResult, error)
	ApplyBoost(context.Context, *BoostRequest) (*matches.BoostResult, error)
	GetBoost(context.Context, *BoostRequest) (*GetBoostResponse, error)
	InvalidateScores(context.Context, *InvalidateScoresRequest) (*InvalidateScoresResponse, error)
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
}

var _ Server = (*Service)(nil)

// ServiceDesc describes the Matching service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("Swipe", Server.Swipe),
		unary("Undo", Server.Undo),
		unary("GetCards", Server.GetCards),
		unary("GetCardDetail", Server.GetCardDetail),
		unary("GetLikes", Server.GetLikes),
		unary("RevealLike", Server.RevealLike),
		unary("GetMatches", Server.GetMatches),
		unary("Unmatch", Server.Unmatch),
		unary("ApplyBoost", Server.ApplyBoost),
		unary("GetBoost", Server.GetBoost),
		unary("InvalidateScores", Server.InvalidateScores),
		unary("Health", Server.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matching/v1",
}

func fullMethod(method string) string { return "/" + ServiceName + "/" + method }

// unary adapts a typed handler to grpc.MethodDesc, running interceptors the
// same way generated code does.
func unary[Req, Resp any](method string, call func(Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls the Matching service over a JSON-coded connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(server.CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Swipe(ctx context.Context, in *SwipeRequest, opts ...grpc.CallOption) (*swipe.Result, error) {
	return invoke[swipe.Result](ctx, c.cc, "Swipe", in, opts...)
}

func (c *Client) Undo(ctx context.Context, in *UndoRequest, opts ...grpc.CallOption) (*swipe.UndoResult, error) {
	return invoke[swipe.UndoResult](ctx, c.cc, "Undo", in, opts...)
}

func (c *Client) GetCards(ctx context.Context, in *GetCardsRequest, opts ...grpc.CallOption) (*discovery.Page, error) {
	return invoke[discovery.Page](ctx, c.cc, "GetCards", in, opts...)
}

func (c *Client) GetCardDetail(ctx context.Context, in *GetCardDetailRequest, opts ...grpc.CallOption) (*model.CardDetail, error) {
	return invoke[model.CardDetail](ctx, c.cc, "GetCardDetail", in, opts...)
}

func (c *Client) GetLikes(ctx context.Context, in *GetLikesRequest, opts ...grpc.CallOption) (*likes.Page, error) {
	return invoke[likes.Page](ctx, c.cc, "GetLikes", in, opts...)
}

func (c *Client) RevealLike(ctx context.Context, in *RevealLikeRequest, opts ...grpc.CallOption) (*likes.RevealResult, error) {
	return invoke[likes.RevealResult](ctx, c.cc, "RevealLike", in, opts...)
}

func (c *Client) GetMatches(ctx context.Context, in *GetMatchesRequest, opts ...grpc.CallOption) (*matches.Page, error) {
	return invoke[matches.Page](ctx, c.cc, "GetMatches", in, opts...)
}

func (c *Client) Unmatch(ctx context.Context, in *UnmatchRequest, opts ...grpc.CallOption) (*matches.UnmatchResult, error) {
	return invoke[matches.UnmatchResult](ctx, c.cc, "Unmatch", in, opts...)
}

func (c *Client) ApplyBoost(ctx context.Context, in *BoostRequest, opts ...grpc.CallOption) (*matches.BoostResult, error) {
	return invoke[matches.BoostResult](ctx, c.cc, "ApplyBoost", in, opts...)
}

func (c *Client) GetBoost(ctx context.Context, in *BoostRequest, opts ...grpc.CallOption) (*GetBoostResponse, error) {
	return invoke[GetBoostResponse](ctx, c.cc, "GetBoost", in, opts...)
}

func (c *Client) InvalidateScores(ctx context.Context, in *InvalidateScoresRequest, opts ...grpc.CallOption) (*InvalidateScoresResponse, error) {
	return invoke[InvalidateScoresResponse](ctx, c.cc, "InvalidateScores", in, opts...)
}

func (c *Client) Health(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	return invoke[HealthResponse](ctx, c.cc, "Health", in, opts...)
}
