package app

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/audit"
	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/contentguard"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/metrics"
	"github.com/oggyb/campus-match/internal/ratelimit"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/storage"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger

	Guard    *contentguard.Guard
	Audit    *audit.Recorder
	Limiter  *ratelimit.Limiter
	Bus      events.Bus
	Verifier *identity.Verifier
	Photos   *storage.PhotoStore // nil when no storage endpoint is configured
	Now      func() time.Time
}

type Option func(*options)

type options struct {
	bus          events.Bus
	photos       *storage.PhotoStore
	now          func() time.Time
	limiterOpts  []ratelimit.Option
	guard        *contentguard.Guard
	limiterStore ratelimit.Store
}

func WithBus(b events.Bus) Option { return func(o *options) { o.bus = b } }

func WithPhotos(p *storage.PhotoStore) Option { return func(o *options) { o.photos = p } }

// WithClock sets the clock used by services and the rate limiter.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithLimiterOptions(opts ...ratelimit.Option) Option {
	return func(o *options) { o.limiterOpts = append(o.limiterOpts, opts...) }
}

func WithLimiterStore(s ratelimit.Store) Option { return func(o *options) { o.limiterStore = s } }

func WithGuard(g *contentguard.Guard) Option { return func(o *options) { o.guard = g } }

// New creates a new AppContext and wires the cross-cutting components.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	if cfg == nil {
		cfg = &config.Config{}
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if o.bus == nil {
		if cfg.Realtime.Backend == "memory" || rdb == nil {
			o.bus = events.NewMemoryBus()
		} else {
			o.bus = events.NewRedisBus(rdb.Client, logger)
		}
	}
	if o.guard == nil {
		o.guard = contentguard.Default()
	}
	if o.limiterStore == nil && rdb != nil {
		o.limiterStore = ratelimit.NewRedisStore(rdb.Client)
	}

	recorder := audit.NewRecorder(repository.NewAuditRepository(db), logger)

	limiterOpts := append([]ratelimit.Option{
		ratelimit.WithClock(o.now),
		ratelimit.WithFailOpen(cfg.RateLimit.FailOpen),
		ratelimit.WithAuditor(recorder),
	}, o.limiterOpts...)

	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Guard:      o.guard,
		Audit:      recorder,
		Limiter:    ratelimit.New(o.limiterStore, logger, limiterOpts...),
		Bus:        o.bus,
		Verifier:   identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 24*time.Hour),
		Photos:     o.photos,
		Now:        o.now,
	}
}

// CheckContent runs fields through the content guard. A rejection is
// counted, audited as content_blocked and returned as a validation error.
func (a *AppContext) CheckContent(ctx context.Context, actorID string, fields []contentguard.Field) error {
	v, bad := a.Guard.FirstViolation(fields)
	if !bad {
		return nil
	}

	metrics.ContentBlocked.WithLabelValues(v.Field.Name).Inc()
	a.Logger.Info("content blocked", "actor", actorID, "field", v.Field.Name)
	a.Audit.Record(ctx, audit.Entry{
		Type:    audit.EventContentBlocked,
		ActorID: actorID,
		Details: map[string]any{
			"field": v.Field.Name,
			"terms": v.Terms,
		},
	})
	return a.Guard.ValidateFields([]contentguard.Field{v.Field})
}

// Publish pushes e to realtime subscribers. Delivery is best effort, so
// failures are only logged.
func (a *AppContext) Publish(ctx context.Context, e events.Event) {
	if a.Bus == nil {
		return
	}
	if err := a.Bus.Publish(ctx, e); err != nil {
		a.Logger.Warn("realtime publish failed", "table", e.Table, "id", e.ID, "err", err)
	}
}

// Authenticate verifies a session token and attaches the caller and client
// address to ctx.
//
// Behavior:
//   - Missing or invalid token → Unauthenticated.
//   - Banned account → Banned, and the revoked session is audited as
//     banned_session_revoked. Clients must sign out.
func (a *AppContext) Authenticate(ctx context.Context, rawToken, clientIP string) (context.Context, error) {
	id, err := a.Verifier.Parse(rawToken)
	if err != nil {
		return ctx, err
	}
	if clientIP != "" {
		ctx = identity.WithClientIP(ctx, clientIP)
	}

	banned, err := repository.NewProfileRepository(a.DB).IsBanned(ctx, id.UserID)
	if err != nil {
		return ctx, svcErr.Persistence("check ban state", err)
	}
	if banned {
		a.Logger.Info("banned session revoked", "user", id.UserID, "ip", clientIP)
		a.Audit.Record(ctx, audit.Entry{
			Type:     audit.EventBannedSessionRevoked,
			ActorID:  id.UserID,
			TargetID: id.UserID,
			Details:  map[string]any{"sid": id.SID},
		})
		return ctx, svcErr.Banned()
	}
	return identity.WithIdentity(ctx, id), nil
}
