package safety

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/server/rpc"
)

const ServiceName = "campusmatch.safety.v1.SafetyService"

type SafetyServer interface {
	SubmitReport(context.Context, *SubmitReportRequest) (*SubmitReportResponse, error)
}

// Registrar ties the Safety service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	service := NewSafetyService(r.appCtx)
	s.RegisterService(rpc.ServiceDesc(ServiceName, (*SafetyServer)(nil),
		rpc.Unary(ServiceName, "SubmitReport", service.SubmitReport),
	), service)
}
