package explore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/mission"
	"github.com/oggyb/campus-match/internal/service/explore"
	"github.com/oggyb/campus-match/internal/testutil"
)

//
// Test helpers
//

// setupService wires an Explore service over SQLite, miniredis and an
// in-memory bus, and seeds the given profiles.
func setupService(t *testing.T, profiles ...db.Profile) (*explore.Service, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	testutil.SeedProfiles(t, env.DB, profiles...)
	return explore.NewExploreService(env.App), env
}

func everyone(ids ...string) []db.Profile {
	out := make([]db.Profile, len(ids))
	for i, id := range ids {
		out[i] = testutil.Profile(id, "Male", db.PreferenceEveryone)
	}
	return out
}

func candidateIDs(t *testing.T, svc *explore.Service, userID string) []string {
	t.Helper()
	resp, err := svc.GetCandidates(testutil.AsUser(context.Background(), userID), &explore.GetCandidatesRequest{})
	require.NoError(t, err)
	ids := make([]string, len(resp.Candidates))
	for i, c := range resp.Candidates {
		ids[i] = c.UserID
	}
	return ids
}

func swipe(t *testing.T, svc *explore.Service, from, to, dir string) *explore.RecordSwipeResponse {
	t.Helper()
	resp, err := svc.RecordSwipe(testutil.AsUser(context.Background(), from), &explore.RecordSwipeRequest{
		TargetUserID: to,
		Direction:    dir,
	})
	require.NoError(t, err)
	return resp
}

func matchCount(t *testing.T, env *testutil.Env, a, b string) int64 {
	t.Helper()
	u1, u2 := db.SortedPair(a, b)
	var n int64
	require.NoError(t, env.DB.Model(&db.Match{}).Where("user1_id = ? AND user2_id = ?", u1, u2).Count(&n).Error)
	return n
}

//
// Candidate selection
//

func TestGetCandidates_ExcludesSelfAndSwiped(t *testing.T) {
	svc, _ := setupService(t, everyone("a", "b", "c", "d")...)

	swipe(t, svc, "a", "b", "left")
	swipe(t, svc, "a", "c", "right")
	swipe(t, svc, "d", "a", "right") // d's swipe does not hide d from a

	assert.Equal(t, []string{"d"}, candidateIDs(t, svc, "a"))
	assert.NotContains(t, candidateIDs(t, svc, "b"), "b")
}

func TestGetCandidates_GenderScenario(t *testing.T) {
	a := testutil.Profile("a", "Male", "Female")
	b := testutil.Profile("b", "Female", "Male")
	svc, env := setupService(t, a, b)

	assert.Contains(t, candidateIDs(t, svc, "a"), "b")
	assert.Contains(t, candidateIDs(t, svc, "b"), "a")

	// B no longer wants A's gender; A still wants B's.
	require.NoError(t, env.DB.Model(&db.Profile{}).Where("user_id = ?", "b").
		Update("preferred_gender", "Female").Error)
	assert.NotContains(t, candidateIDs(t, svc, "a"), "b")
}

func TestGetCandidates_BidirectionalFilter(t *testing.T) {
	profiles := []db.Profile{
		testutil.Profile("r", "Female", "Male"),
		testutil.Profile("c1", "Male", "Female"),              // both ways
		testutil.Profile("c2", "Male", db.PreferenceEveryone), // catch-all
		testutil.Profile("c3", "Male", "Male"),                // does not want r
		testutil.Profile("c4", "Female", "Female"),            // r does not want c4
		testutil.Profile("c5", "Other", db.PreferenceEveryone),
	}
	svc, _ := setupService(t, profiles...)

	assert.Equal(t, []string{"c1", "c2"}, candidateIDs(t, svc, "r"))
}

func TestGetCandidates_NoPreferenceSkipsFilter(t *testing.T) {
	r := testutil.Profile("r", "Female", "")
	svc, _ := setupService(t, r,
		testutil.Profile("c1", "Male", "Male"),
		testutil.Profile("c2", "Female", "Female"),
	)
	assert.Equal(t, []string{"c1", "c2"}, candidateIDs(t, svc, "r"))
}

func TestGetCandidates_OnlyApproved(t *testing.T) {
	pending := testutil.Profile("p", "Male", db.PreferenceEveryone)
	pending.Status = db.StatusPending
	rejected := testutil.Profile("q", "Male", db.PreferenceEveryone)
	rejected.Status = db.StatusRejected
	banned := testutil.Profile("x", "Male", db.PreferenceEveryone)
	banned.Status = db.StatusBanned

	svc, _ := setupService(t, testutil.Profile("a", "Female", db.PreferenceEveryone),
		testutil.Profile("b", "Male", db.PreferenceEveryone), pending, rejected, banned)

	assert.Equal(t, []string{"b"}, candidateIDs(t, svc, "a"))
}

func TestGetCandidates_Paging(t *testing.T) {
	svc, _ := setupService(t, everyone("a", "b", "c", "d", "e", "f")...)
	ctx := testutil.AsUser(context.Background(), "a")

	var seen []string
	token := ""
	for page := 0; page < 5; page++ {
		resp, err := svc.GetCandidates(ctx, &explore.GetCandidatesRequest{PageToken: token, Limit: 2})
		require.NoError(t, err)
		for _, c := range resp.Candidates {
			seen = append(seen, c.UserID)
		}
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, seen)

	_, err := svc.GetCandidates(ctx, &explore.GetCandidatesRequest{PageToken: "%%%"})
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestGetCandidates_EmptyIsNotAnError(t *testing.T) {
	svc, _ := setupService(t, everyone("a")...)
	ids := candidateIDs(t, svc, "a")
	assert.Empty(t, ids)
}

func TestGetCandidates_RequesterMustBeApproved(t *testing.T) {
	p := testutil.Profile("a", "Male", db.PreferenceEveryone)
	p.Status = db.StatusPending
	svc, _ := setupService(t, p)

	_, err := svc.GetCandidates(testutil.AsUser(context.Background(), "a"), &explore.GetCandidatesRequest{})
	assert.True(t, svcErr.Is(err, svcErr.KindModerationConflict))

	_, err = svc.GetCandidates(testutil.AsUser(context.Background(), "nobody"), &explore.GetCandidatesRequest{})
	assert.True(t, svcErr.Is(err, svcErr.KindModerationConflict))

	_, err = svc.GetCandidates(context.Background(), &explore.GetCandidatesRequest{})
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))
}

//
// Swipes and matches
//

func assertNewMatch(t *testing.T, env *testutil.Env, a, b string) {
	t.Helper()
	u1, u2 := db.SortedPair(a, b)
	var m db.Match
	require.NoError(t, env.DB.Where("user1_id = ? AND user2_id = ?", u1, u2).Take(&m).Error)

	ids := m.MissionIDs()
	assert.Len(t, ids, mission.PerMatch)
	seen := map[string]bool{}
	for _, id := range ids {
		_, ok := mission.Lookup(id)
		assert.True(t, ok, "unknown mission %q", id)
		assert.False(t, seen[id], "duplicate mission %q", id)
		seen[id] = true
	}
	assert.Equal(t, 1, m.MissionNumber)
	assert.False(t, m.MissionCompleted)
	assert.Nil(t, m.MissionCompletedAt)
}

func TestRecordSwipe_MatchEitherOrder(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b", "c", "d")...)

	first := swipe(t, svc, "a", "b", "right")
	assert.False(t, first.Matched)
	second := swipe(t, svc, "b", "a", "right")
	assert.True(t, second.Matched)
	assert.True(t, second.WasSecretAdmirer)
	assert.NotEmpty(t, second.MatchID)
	assert.EqualValues(t, 1, matchCount(t, env, "a", "b"))
	assertNewMatch(t, env, "a", "b")

	// reversed order, different pair
	swipe(t, svc, "d", "c", "right")
	assert.True(t, swipe(t, svc, "c", "d", "right").Matched)
	assert.EqualValues(t, 1, matchCount(t, env, "c", "d"))
	assertNewMatch(t, env, "c", "d")
}

func TestRecordSwipe_RepeatIsNoOp(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b")...)

	swipe(t, svc, "a", "b", "right")
	first := swipe(t, svc, "b", "a", "right")
	again := swipe(t, svc, "b", "a", "right")

	assert.True(t, again.Matched)
	assert.Equal(t, first.MatchID, again.MatchID)
	assert.EqualValues(t, 1, matchCount(t, env, "a", "b"))

	// a later left keeps the stored right swipe
	left := swipe(t, svc, "a", "b", "left")
	assert.True(t, left.Matched)
	var sw db.Swipe
	require.NoError(t, env.DB.Where("swiper_id = ? AND swiped_id = ?", "a", "b").Take(&sw).Error)
	assert.Equal(t, db.DirectionRight, sw.Direction)

	var notes int64
	require.NoError(t, env.DB.Model(&db.Notification{}).Where("type = ?", db.NotificationMatch).Count(&notes).Error)
	assert.EqualValues(t, 2, notes, "one match notification per user")
}

func TestRecordSwipe_ConcurrentReciprocalSwipes(t *testing.T) {
	for i := 0; i < 10; i++ {
		t.Run(fmt.Sprintf("round_%d", i), func(t *testing.T) {
			svc, env := setupService(t, everyone("a", "b")...)

			var (
				wg      sync.WaitGroup
				results [2]*explore.RecordSwipeResponse
				errs    [2]error
			)
			for j, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ctx := testutil.AsUser(context.Background(), pair[0])
					results[j], errs[j] = svc.RecordSwipe(ctx, &explore.RecordSwipeRequest{
						TargetUserID: pair[1],
						Direction:    "right",
					})
				}()
			}
			wg.Wait()

			require.NoError(t, errs[0])
			require.NoError(t, errs[1])
			assert.True(t, results[0].Matched || results[1].Matched)
			assert.EqualValues(t, 1, matchCount(t, env, "a", "b"))
		})
	}
}

func TestRecordSwipe_LikeNotification(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b")...)

	swipe(t, svc, "a", "b", "right")
	swipe(t, svc, "a", "b", "right")

	var likes []db.Notification
	require.NoError(t, env.DB.Where("type = ?", db.NotificationLike).Find(&likes).Error)
	require.Len(t, likes, 1)
	assert.Equal(t, "b", likes[0].RecipientID)
	assert.Equal(t, "a", likes[0].OriginID)
	assert.False(t, likes[0].IsRead)

	// reciprocating resolves the like
	swipe(t, svc, "b", "a", "right")
	require.NoError(t, env.DB.Where("type = ?", db.NotificationLike).Find(&likes).Error)
	assert.True(t, likes[0].IsRead)
}

func TestRecordSwipe_LostMatch(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b", "c")...)

	swipe(t, svc, "b", "a", "right")
	resp := swipe(t, svc, "a", "b", "left")
	assert.True(t, resp.WasSecretAdmirer)
	assert.True(t, resp.LostMatch)
	assert.False(t, resp.Matched)

	var like db.Notification
	require.NoError(t, env.DB.Where("recipient_id = ? AND origin_id = ?", "a", "b").Take(&like).Error)
	assert.True(t, like.IsRead)
	assert.EqualValues(t, 0, matchCount(t, env, "a", "b"))

	plain := swipe(t, svc, "a", "c", "left")
	assert.False(t, plain.LostMatch)
	assert.False(t, plain.WasSecretAdmirer)
}

func TestRecordSwipe_Validation(t *testing.T) {
	pending := testutil.Profile("p", "Male", db.PreferenceEveryone)
	pending.Status = db.StatusPending
	svc, _ := setupService(t, append(everyone("a", "b"), pending)...)
	ctx := testutil.AsUser(context.Background(), "a")

	cases := []struct {
		name string
		req  explore.RecordSwipeRequest
		kind svcErr.Kind
	}{
		{"self", explore.RecordSwipeRequest{TargetUserID: "a", Direction: "right"}, svcErr.KindValidation},
		{"direction", explore.RecordSwipeRequest{TargetUserID: "b", Direction: "up"}, svcErr.KindValidation},
		{"empty target", explore.RecordSwipeRequest{Direction: "left"}, svcErr.KindValidation},
		{"unknown target", explore.RecordSwipeRequest{TargetUserID: "zz", Direction: "left"}, svcErr.KindNotFound},
		{"pending target", explore.RecordSwipeRequest{TargetUserID: "p", Direction: "right"}, svcErr.KindModerationConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordSwipe(ctx, &tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, svcErr.KindOf(err))
		})
	}
}

func TestRecordSwipe_CompensatesFailedFollowUp(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b")...)
	require.NoError(t, env.DB.Migrator().DropTable(&db.Notification{}))

	_, err := svc.RecordSwipe(testutil.AsUser(context.Background(), "a"), &explore.RecordSwipeRequest{
		TargetUserID: "b",
		Direction:    "right",
	})
	require.Error(t, err)
	assert.Equal(t, svcErr.KindInternal, svcErr.KindOf(err))

	var n int64
	require.NoError(t, env.DB.Model(&db.Swipe{}).Count(&n).Error)
	assert.Zero(t, n, "swipe must be rolled back")
	assert.Contains(t, candidateIDs(t, svc, "a"), "b", "target is offered again")
}

func TestRecordSwipe_TargetBannedBeforeMatch(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b")...)
	swipe(t, svc, "b", "a", "right")

	// the ban commits after a's swipe has checked b's visibility
	testutil.AfterProfileRead(t, env.DB, "b", func() { testutil.Ban(t, env.DB, "b") })

	_, err := svc.RecordSwipe(testutil.AsUser(context.Background(), "a"), &explore.RecordSwipeRequest{
		TargetUserID: "b",
		Direction:    "right",
	})
	require.Error(t, err)
	assert.Equal(t, svcErr.KindModerationConflict, svcErr.KindOf(err))

	var matches, swipes int64
	require.NoError(t, env.DB.Model(&db.Match{}).Count(&matches).Error)
	require.NoError(t, env.DB.Model(&db.Swipe{}).Where("swiper_id = ?", "a").Count(&swipes).Error)
	assert.Zero(t, matches, "no match may reference a banned user")
	assert.Zero(t, swipes, "swipe must be rolled back")
}

func TestRecordSwipe_PublishesMatch(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b")...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, stop, err := env.Bus.Subscribe(ctx, events.Filter{Table: events.TableMatches, UserID: "a"})
	require.NoError(t, err)
	defer stop()

	swipe(t, svc, "a", "b", "right")
	resp := swipe(t, svc, "b", "a", "right")

	select {
	case e := <-ch:
		assert.Equal(t, events.OpInsert, e.Type)
		assert.Equal(t, resp.MatchID, e.ID)
		assert.ElementsMatch(t, []string{"a", "b"}, e.Participants)
	case <-ctx.Done():
		t.Fatal("match event not published")
	}
}

//
// Admirers
//

func TestListAdmirers(t *testing.T) {
	svc, _ := setupService(t, everyone("a", "b", "c", "d")...)

	swipe(t, svc, "b", "a", "right")
	swipe(t, svc, "c", "a", "right")
	swipe(t, svc, "d", "a", "left")
	swipe(t, svc, "a", "c", "left") // answered

	resp, err := svc.ListAdmirers(testutil.AsUser(context.Background(), "a"), &explore.ListAdmirersRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Admirers, 1)
	assert.Equal(t, "b", resp.Admirers[0].UserID)
	assert.Empty(t, resp.NextPageToken)

	_, err = svc.ListAdmirers(testutil.AsUser(context.Background(), "a"), &explore.ListAdmirersRequest{PageToken: "!!"})
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestCountAdmirers_CacheFirst(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b", "c")...)
	ctx := testutil.AsUser(context.Background(), "a")

	swipe(t, svc, "b", "a", "right")
	swipe(t, svc, "c", "a", "right")

	resp, err := svc.CountAdmirers(ctx, &explore.CountAdmirersRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Count)

	cached, err := env.Redis.Get(cache.KeyForAdmirerCount("a"))
	require.NoError(t, err)
	assert.Equal(t, "2", cached)
	assert.Equal(t, cache.AdmirerCountTTL, env.Redis.TTL(cache.KeyForAdmirerCount("a")))

	// served from cache
	require.NoError(t, env.Redis.Set(cache.KeyForAdmirerCount("a"), "7"))
	resp, err = svc.CountAdmirers(ctx, &explore.CountAdmirersRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, resp.Count)

	// answering an admirer drops the cached value
	swipe(t, svc, "a", "b", "left")
	assert.False(t, env.Redis.Exists(cache.KeyForAdmirerCount("a")))
	resp, err = svc.CountAdmirers(ctx, &explore.CountAdmirersRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Count)
}

func TestCountAdmirers_RedisDown(t *testing.T) {
	svc, env := setupService(t, everyone("a", "b")...)
	swipe(t, svc, "b", "a", "right")
	env.Redis.Close()

	resp, err := svc.CountAdmirers(testutil.AsUser(context.Background(), "a"), &explore.CountAdmirersRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Count)
}
