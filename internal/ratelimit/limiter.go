// Package ratelimit gates sensitive actions with fixed-window quotas per
// (class, identifier).
package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oggyb/campus-match/internal/audit"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/metrics"
)

type Class string

const (
	ClassAuth    Class = "auth"
	ClassProfile Class = "profile"
	ClassMessage Class = "message"
	ClassReport  Class = "report"
)

// Policy is a quota of Quota hits per Window.
type Policy struct {
	Quota  int
	Window time.Duration
}

// DefaultPolicies are the production quotas.
var DefaultPolicies = map[Class]Policy{
	ClassAuth:    {Quota: 5, Window: 15 * time.Minute},
	ClassProfile: {Quota: 3, Window: time.Hour},
	ClassMessage: {Quota: 60, Window: time.Minute},
	ClassReport:  {Quota: 5, Window: 24 * time.Hour},
}

// Decision is the verdict for one hit.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // zero when allowed
}

func (d Decision) ResetAtEpochMs() int64 { return d.ResetAt.UnixMilli() }

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int64((d.RetryAfter + time.Second - 1) / time.Second)
}

// Auditor receives denial events.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Limiter struct {
	store    Store
	auditor  Auditor
	log      *slog.Logger
	now      func() time.Time
	failOpen bool
	policies map[Class]Policy
}

type Option func(*Limiter)

// WithClock replaces time.Now, so tests can move through windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithFailOpen decides what happens when the store is unreachable.
func WithFailOpen(failOpen bool) Option {
	return func(l *Limiter) { l.failOpen = failOpen }
}

func WithAuditor(a Auditor) Option {
	return func(l *Limiter) { l.auditor = a }
}

// WithPolicy overrides the quota of one class.
func WithPolicy(c Class, p Policy) Option {
	return func(l *Limiter) { l.policies[c] = p }
}

func New(store Store, log *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		log:      log,
		now:      time.Now,
		failOpen: true,
		policies: make(map[Class]Policy, len(DefaultPolicies)),
	}
	for c, p := range DefaultPolicies {
		l.policies[c] = p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ParseClass maps a wire name to a known class.
func (l *Limiter) ParseClass(s string) (Class, bool) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	_, ok := l.policies[c]
	return c, ok
}

// Key is the store key for (class, identifier).
func Key(c Class, identifier string) string {
	return "ratelimit:" + string(c) + ":" + identifier
}

// Allow counts one hit against (class, identifier).
//
// Behavior:
//   - Unknown class or empty identifier → validation error.
//   - Denied hits do not consume quota and are written to the audit log.
//   - Store failure → allowed with a "rate limiter degraded" warning when
//     failing open, otherwise a persistence error.
func (l *Limiter) Allow(ctx context.Context, class Class, identifier string) (Decision, error) {
	p, ok := l.policies[class]
	if !ok {
		return Decision{}, svcErr.Validation("limiterType", "unknown limiter type")
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Decision{}, svcErr.Validation("identifier", "identifier is required")
	}

	now := l.now()
	w, err := l.store.Hit(ctx, Key(class, identifier), now, p)
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues(string(class), "degraded").Inc()
		l.log.Warn("rate limiter degraded",
			"class", class,
			"identifier", identifier,
			"fail_open", l.failOpen,
			"err", err,
		)
		if !l.failOpen {
			return Decision{}, svcErr.Persistence("rate limit check", err)
		}
		return Decision{Allowed: true, Limit: p.Quota, Remaining: p.Quota, ResetAt: now.Add(p.Window)}, nil
	}

	d := Decision{
		Allowed: w.Allowed,
		Limit:   p.Quota,
		ResetAt: w.ResetAt,
	}
	if w.Allowed {
		d.Remaining = max(p.Quota-int(w.Count), 0)
		metrics.RateLimitDecisions.WithLabelValues(string(class), "allowed").Inc()
		return d, nil
	}

	d.RetryAfter = max(w.ResetAt.Sub(now), time.Second)
	metrics.RateLimitDecisions.WithLabelValues(string(class), "denied").Inc()
	l.log.Info("rate limit exceeded", "class", class, "identifier", identifier, "retry_after", d.RetryAfter)
	if l.auditor != nil {
		l.auditor.Record(ctx, audit.Entry{
			Type: audit.EventRateLimitExceeded,
			Details: map[string]any{
				"class":      string(class),
				"identifier": identifier,
			},
		})
	}
	return d, nil
}

// Enforce is Allow for services: a denial becomes a RateLimited error.
func (l *Limiter) Enforce(ctx context.Context, class Class, identifier string) error {
	d, err := l.Allow(ctx, class, identifier)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return svcErr.RateLimited(d.RetryAfter)
	}
	return nil
}
