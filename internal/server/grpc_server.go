package server

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/campus-match/internal/app"
)

// NewGRPCServer builds a gRPC server with the interceptor chain, health and
// reflection, and registers all provided services.
func NewGRPCServer(appCtx *app.AppContext, registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			observeInterceptor(appCtx.Logger),
			errorInterceptor(),
			authInterceptor(appCtx),
		),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer
}

// StartGRPCServer listens on the configured address and serves until ctx ends.
func StartGRPCServer(ctx context.Context, appCtx *app.AppContext, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", appCtx.Config.GRPC.Host, appCtx.Config.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := NewGRPCServer(appCtx, registrars...)

	go func() {
		<-ctx.Done()
		appCtx.Logger.Info("stopping gRPC server")
		grpcServer.GracefulStop()
	}()

	appCtx.Logger.Info("starting gRPC server", "addr", addr)
	return grpcServer.Serve(lis)
}
