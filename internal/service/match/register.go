package match

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/server/rpc"
)

const ServiceName = "campusmatch.match.v1.MatchService"

type MatchServer interface {
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
	AdvanceMission(context.Context, *AdvanceMissionRequest) (*MatchView, error)
	SendMessage(context.Context, *SendMessageRequest) (*MessageView, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	GetMatchHeader(context.Context, *GetMatchHeaderRequest) (*MatchView, error)
}

// Registrar ties the Match service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	service := NewMatchService(r.appCtx)
	s.RegisterService(rpc.ServiceDesc(ServiceName, (*MatchServer)(nil),
		rpc.Unary(ServiceName, "ListMatches", service.ListMatches),
		rpc.Unary(ServiceName, "AdvanceMission", service.AdvanceMission),
		rpc.Unary(ServiceName, "SendMessage", service.SendMessage),
		rpc.Unary(ServiceName, "ListMessages", service.ListMessages),
		rpc.Unary(ServiceName, "GetMatchHeader", service.GetMatchHeader),
	), service)
}
