package profile

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/server/rpc"
)

const ServiceName = "campusmatch.profile.v1.ProfileService"

type ProfileServer interface {
	SubmitProfile(context.Context, *SubmitProfileRequest) (*ProfileView, error)
	GetMyProfile(context.Context, *GetMyProfileRequest) (*ProfileView, error)
	DeleteAccount(context.Context, *DeleteAccountRequest) (*DeleteAccountResponse, error)
}

// Registrar ties the Profile service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	service := NewProfileService(r.appCtx)
	s.RegisterService(rpc.ServiceDesc(ServiceName, (*ProfileServer)(nil),
		rpc.Unary(ServiceName, "SubmitProfile", service.SubmitProfile),
		rpc.Unary(ServiceName, "GetMyProfile", service.GetMyProfile),
		rpc.Unary(ServiceName, "DeleteAccount", service.DeleteAccount),
	), service)
}
