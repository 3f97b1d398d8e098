package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campus-match/internal/audit"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/ratelimit"
	"github.com/oggyb/campus-match/internal/testutil"
)

type auditSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *auditSpy) Record(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func newLimiter(t *testing.T, opts ...ratelimit.Option) (*ratelimit.Limiter, *testutil.Clock, *auditSpy) {
	t.Helper()
	_, client := testutil.NewRedis(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	spy := &auditSpy{}
	opts = append([]ratelimit.Option{ratelimit.WithClock(clock.Now), ratelimit.WithAuditor(spy)}, opts...)
	return ratelimit.New(ratelimit.NewRedisStore(client), logger.Discard(), opts...), clock, spy
}

func TestBoundaryAndWindowReset(t *testing.T) {
	limiter, clock, spy := newLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := limiter.Allow(ctx, ratelimit.ClassProfile, "user-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, ratelimit.ClassProfile, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.Equal(t, clock.Now().Add(time.Hour).UnixMilli(), d.ResetAtEpochMs())

	require.Len(t, spy.entries, 1)
	assert.Equal(t, audit.EventRateLimitExceeded, spy.entries[0].Type)
	assert.Equal(t, "profile", spy.entries[0].Details["class"])
	assert.Equal(t, "user-1", spy.entries[0].Details["identifier"])

	// still inside the window at exactly reset
	clock.Advance(time.Hour)
	d, err = limiter.Allow(ctx, ratelimit.ClassProfile, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	clock.Advance(time.Millisecond)
	d, err = limiter.Allow(ctx, ratelimit.ClassProfile, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestMessageScenario(t *testing.T) {
	limiter, clock, _ := newLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 60; i++ {
		d, err := limiter.Allow(ctx, ratelimit.ClassMessage, "user-42")
		require.NoError(t, err)
		require.True(t, d.Allowed, "send %d", i)
	}

	clock.Advance(15 * time.Second)
	d, err := limiter.Allow(ctx, ratelimit.ClassMessage, "user-42")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(45), d.RetryAfterSeconds())

	clock.Advance(46 * time.Second) // 61s after the first send
	d, err = limiter.Allow(ctx, ratelimit.ClassMessage, "user-42")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 59, d.Remaining)
}

func TestDeniedHitsDoNotConsumeQuota(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	clock := testutil.NewClock(time.Now())
	limiter := ratelimit.New(ratelimit.NewRedisStore(client), logger.Discard(), ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := limiter.Allow(ctx, ratelimit.ClassAuth, "10.0.0.1")
		require.NoError(t, err)
	}
	assert.Equal(t, "5", mr.HGet(ratelimit.Key(ratelimit.ClassAuth, "10.0.0.1"), "count"))
}

func TestConcurrentHitsNeverExceedQuota(t *testing.T) {
	limiter, _, _ := newLimiter(t)
	ctx := context.Background()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(ctx, ratelimit.ClassReport, "reporter")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), allowed.Load())
}

func TestIdentifiersAndClassesAreIndependent(t *testing.T) {
	limiter, _, _ := newLimiter(t, ratelimit.WithPolicy(ratelimit.ClassAuth, ratelimit.Policy{Quota: 1, Window: time.Minute}))
	ctx := context.Background()

	d, _ := limiter.Allow(ctx, ratelimit.ClassAuth, "a")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, ratelimit.ClassAuth, "a")
	assert.False(t, d.Allowed)
	d, _ = limiter.Allow(ctx, ratelimit.ClassAuth, "b")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, ratelimit.ClassProfile, "a")
	assert.True(t, d.Allowed)
}

func TestUnknownClassAndEmptyIdentifier(t *testing.T) {
	limiter, _, _ := newLimiter(t)

	_, err := limiter.Allow(context.Background(), ratelimit.Class("upload"), "a")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = limiter.Allow(context.Background(), ratelimit.ClassAuth, "  ")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, ok := limiter.ParseClass(" Message ")
	assert.True(t, ok)
}

func TestBackendDown(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	mr.Close()

	open := ratelimit.New(ratelimit.NewRedisStore(client), logger.Discard())
	d, err := open.Allow(context.Background(), ratelimit.ClassMessage, "u")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	closed := ratelimit.New(ratelimit.NewRedisStore(client), logger.Discard(), ratelimit.WithFailOpen(false))
	_, err = closed.Allow(context.Background(), ratelimit.ClassMessage, "u")
	require.Error(t, err)
	assert.Equal(t, svcErr.KindInternal, svcErr.KindOf(err))
}

func TestEnforce(t *testing.T) {
	limiter, _, _ := newLimiter(t, ratelimit.WithPolicy(ratelimit.ClassReport, ratelimit.Policy{Quota: 1, Window: time.Hour}))
	ctx := context.Background()

	require.NoError(t, limiter.Enforce(ctx, ratelimit.ClassReport, "u"))
	err := limiter.Enforce(ctx, ratelimit.ClassReport, "u")
	require.Error(t, err)

	var e *svcErr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, svcErr.KindRateLimited, e.Kind)
	assert.Equal(t, time.Hour, e.RetryAfter)
}
