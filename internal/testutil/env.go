package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/logger"
)

// Env is a fully wired AppContext over SQLite, miniredis and an in-memory bus.
type Env struct {
	App   *app.AppContext
	DB    *gorm.DB
	Redis *miniredis.Miniredis
	Bus   *events.MemoryBus
	Clock *Clock
}

// TestConfig is the configuration every Env starts from.
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.ENV = "test"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.Issuer = "campus-match-test"
	cfg.Match.CandidateLimit = 50
	cfg.RateLimit.FailOpen = true
	cfg.Realtime.Backend = "memory"
	cfg.Storage.Bucket = "profile-photos"
	return cfg
}

// NewEnv builds an Env. Extra options are applied after the defaults.
func NewEnv(t *testing.T, opts ...app.Option) *Env {
	t.Helper()

	gdb := NewDB(t)
	mr, client := NewRedis(t)
	bus := events.NewMemoryBus()
	clock := NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	all := append([]app.Option{
		app.WithBus(bus),
		app.WithClock(clock.Now),
	}, opts...)

	return &Env{
		App:   app.New(TestConfig(), gdb, cache.FromClient(client), logger.Discard(), all...),
		DB:    gdb,
		Redis: mr,
		Bus:   bus,
		Clock: clock,
	}
}

// AsUser returns ctx carrying a verified, non-admin identity.
func AsUser(ctx context.Context, userID string) context.Context {
	return identity.WithIdentity(ctx, identity.Identity{
		UserID:        userID,
		Email:         userID + "@campus.test",
		EmailVerified: true,
		Role:          identity.RoleUser,
	})
}

// AsAdmin returns ctx carrying an admin identity.
func AsAdmin(ctx context.Context, userID string) context.Context {
	return identity.WithIdentity(ctx, identity.Identity{
		UserID:        userID,
		Email:         userID + "@campus.test",
		EmailVerified: true,
		Role:          identity.RoleAdmin,
	})
}
