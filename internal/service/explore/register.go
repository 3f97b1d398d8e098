package explore

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "campusmatch.explore.v1.ExploreService"

// ExploreServer is the server API for ExploreService.
type ExploreServer interface {
	GetCandidates(context.Context, *GetCandidatesRequest) (*GetCandidatesResponse, error)
	RecordSwipe(context.Context, *RecordSwipeRequest) (*RecordSwipeResponse, error)
	ListAdmirers(context.Context, *ListAdmirersRequest) (*ListAdmirersResponse, error)
	CountAdmirers(context.Context, *CountAdmirersRequest) (*CountAdmirersResponse, error)
}

// Registrar ties the Explore service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Explore service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Explore service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	service := NewExploreService(r.appCtx)
	s.RegisterService(rpc.ServiceDesc(ServiceName, (*ExploreServer)(nil),
		rpc.Unary(ServiceName, "GetCandidates", service.GetCandidates),
		rpc.Unary(ServiceName, "RecordSwipe", service.RecordSwipe),
		rpc.Unary(ServiceName, "ListAdmirers", service.ListAdmirers),
		rpc.Unary(ServiceName, "CountAdmirers", service.CountAdmirers),
	), service)
}
