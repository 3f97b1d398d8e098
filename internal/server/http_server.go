package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/handlers"
	"github.com/oggyb/campus-match/internal/metrics"
)

// NewRouter builds the HTTP surface served next to gRPC.
func NewRouter(appCtx *app.AppContext) http.Handler {
	h := handlers.NewHandlers(appCtx)

	origins := appCtx.Config.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, metrics.Middleware)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/rate-limit", h.RateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Get("/realtime", h.Realtime)
		r.Post("/photos/{slot}", h.UploadPhoto)
	})

	return r
}

// StartHTTPServer serves the router until ctx ends, then drains connections.
func StartHTTPServer(ctx context.Context, appCtx *app.AppContext) error {
	addr := fmt.Sprintf("%s:%s", appCtx.Config.HTTP.Host, appCtx.Config.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(appCtx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		appCtx.Logger.Info("stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appCtx.Logger.Warn("http shutdown", "err", err)
		}
	}()

	appCtx.Logger.Info("starting HTTP server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
