package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/server"
	"github.com/oggyb/campus-match/internal/service/admin"
	"github.com/oggyb/campus-match/internal/service/explore"
	"github.com/oggyb/campus-match/internal/service/match"
	"github.com/oggyb/campus-match/internal/service/profile"
	"github.com/oggyb/campus-match/internal/service/safety"
	"github.com/oggyb/campus-match/internal/storage"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	var opts []app.Option
	if cfg.Storage.Endpoint != "" {
		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			log.Error("failed to init photo storage", "err", err)
			os.Exit(1)
		}
		opts = append(opts, app.WithPhotos(storage.NewPhotoStore(client, cfg.Storage.Bucket, cfg.Storage.PublicURL)))
	} else {
		log.Warn("photo storage disabled, STORAGE_ENDPOINT is empty")
	}

	appCtx := app.New(cfg, database, redisCache, log, opts...)

	registrars := []server.Registrar{
		explore.NewRegistrar(appCtx),
		profile.NewRegistrar(appCtx),
		match.NewRegistrar(appCtx),
		safety.NewRegistrar(appCtx),
		admin.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if _, err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.StartGRPCServer(gctx, appCtx, registrars...)
	})
	g.Go(func() error {
		return server.StartHTTPServer(gctx, appCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
