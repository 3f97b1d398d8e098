package admin

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/server/rpc"
	"github.com/oggyb/campus-match/internal/service/profile"
)

const ServiceName = "campusmatch.admin.v1.AdminService"

type AdminServer interface {
	ListPendingProfiles(context.Context, *ListPendingProfilesRequest) (*ListPendingProfilesResponse, error)
	ApproveProfile(context.Context, *ReviewProfileRequest) (*profile.ProfileView, error)
	RejectProfile(context.Context, *ReviewProfileRequest) (*profile.ProfileView, error)
	ListReports(context.Context, *ListReportsRequest) (*ListReportsResponse, error)
	BanUser(context.Context, *BanUserRequest) (*BanUserResponse, error)
	GetChatHistory(context.Context, *GetChatHistoryRequest) (*GetChatHistoryResponse, error)
	QueryAudit(context.Context, *QueryAuditRequest) (*QueryAuditResponse, error)
}

// Registrar ties the Admin service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	service := NewAdminService(r.appCtx)
	s.RegisterService(rpc.ServiceDesc(ServiceName, (*AdminServer)(nil),
		rpc.Unary(ServiceName, "ListPendingProfiles", service.ListPendingProfiles),
		rpc.Unary(ServiceName, "ApproveProfile", service.ApproveProfile),
		rpc.Unary(ServiceName, "RejectProfile", service.RejectProfile),
		rpc.Unary(ServiceName, "ListReports", service.ListReports),
		rpc.Unary(ServiceName, "BanUser", service.BanUser),
		rpc.Unary(ServiceName, "GetChatHistory", service.GetChatHistory),
		rpc.Unary(ServiceName, "QueryAudit", service.QueryAudit),
	), service)
}
