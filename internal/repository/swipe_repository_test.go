package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
)

func seedSwipe(t *testing.T, gdb *gorm.DB, swiper, swiped string, dir db.Direction, at time.Time) {
	t.Helper()
	require.NoError(t, gdb.Create(&db.Swipe{SwiperID: swiper, SwipedID: swiped, Direction: dir, CreatedAt: at}).Error)
}

func TestInsertKeepsFirstDirection(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSwipeRepository(testutil.NewDB(t))

	// insert right swipe
	swipe, created, err := repo.Insert(ctx, "u1", "u2", db.DirectionRight)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, db.DirectionRight, swipe.Direction)

	// repeat with left is a no-op
	swipe, created, err = repo.Insert(ctx, "u1", "u2", db.DirectionLeft)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, db.DirectionRight, swipe.Direction)

	ok, err := repo.HasSwipedRight(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasSwipedRight(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAdmirersAndPagination(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewSwipeRepository(gdb)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// a, b, c liked 99; d passed on 99
	seedSwipe(t, gdb, "a", "99", db.DirectionRight, base)
	seedSwipe(t, gdb, "b", "99", db.DirectionRight, base.Add(time.Minute))
	seedSwipe(t, gdb, "c", "99", db.DirectionRight, base.Add(time.Minute))
	seedSwipe(t, gdb, "d", "99", db.DirectionLeft, base.Add(2*time.Minute))
	// 99 already answered a → exclude
	seedSwipe(t, gdb, "99", "a", db.DirectionLeft, base.Add(3*time.Minute))

	page, next, err := repo.ListAdmirers(ctx, "99", "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].SwiperID)
	require.NotEmpty(t, next)

	page, next, err = repo.ListAdmirers(ctx, "99", next, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].SwiperID)
	assert.Empty(t, next)

	count, err := repo.CountAdmirers(ctx, "99")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, _, err = repo.ListAdmirers(ctx, "99", "not-a-token", 10)
	assert.Error(t, err)
}

func TestAdmirersExcludeBannedSwipers(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewSwipeRepository(gdb)

	banned := testutil.Profile("x", "Male", "Female")
	banned.Status = db.StatusBanned
	testutil.SeedProfiles(t, gdb, testutil.Profile("y", "Male", "Female"), banned)

	now := time.Now().UTC()
	seedSwipe(t, gdb, "x", "99", db.DirectionRight, now)
	seedSwipe(t, gdb, "y", "99", db.DirectionRight, now)

	page, _, err := repo.ListAdmirers(ctx, "99", "", 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "y", page[0].SwiperID)

	ids, err := repo.RightSwipedIDs(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"99"}, ids)
}

func TestMatchCreateIfAbsentConverges(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(testutil.NewDB(t))

	first, created, err := repo.CreateIfAbsent(ctx, &db.Match{User1ID: "b", User2ID: "a",
		Mission1ID: "M01", Mission2ID: "M02", Mission3ID: "M03", MissionNumber: 1})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "a", first.User1ID)
	assert.Equal(t, "b", first.User2ID)

	second, created, err := repo.CreateIfAbsent(ctx, &db.Match{User1ID: "a", User2ID: "b",
		Mission1ID: "M04", Mission2ID: "M05", Mission3ID: "M06", MissionNumber: 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "M01", second.Mission1ID)

	n, err := repo.CountForUser(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReviewOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewProfileRepository(gdb)

	p := testutil.Profile("p", "Female", "Male")
	p.Status = db.StatusPending
	testutil.SeedProfiles(t, gdb, p)

	now := time.Now().UTC()
	ok, err := repo.Review(ctx, "p", db.StatusApproved, "mod", "", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// already approved
	ok, err = repo.Review(ctx, "p", db.StatusRejected, "mod", "late", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkBanned(ctx, "p", "mod", now)
	require.NoError(t, err)
	assert.True(t, ok)

	banned, err := repo.IsBanned(ctx, "p")
	require.NoError(t, err)
	assert.True(t, banned)

	ok, err = repo.MarkBanned(ctx, "ghost", "mod", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveIsConditionalOnReadStatus(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewProfileRepository(gdb)

	p := testutil.Profile("p", "Female", "Male")
	p.Status = db.StatusPending
	ok, err := repo.Save(ctx, &p, "")
	require.NoError(t, err)
	assert.True(t, ok)

	// second first-submission loses
	dup := testutil.Profile("p", "Male", "Female")
	ok, err = repo.Save(ctx, &dup, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.MarkBanned(ctx, "p", "mod", time.Now().UTC())
	require.NoError(t, err)

	// stale copy read while pending
	p.Nickname = "renamed"
	ok, err = repo.Save(ctx, &p, db.StatusPending)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, db.StatusBanned, stored.Status)
	assert.Equal(t, "nick p", stored.Nickname)

	statuses, err := repo.LockStatuses(ctx, "p", "ghost")
	require.NoError(t, err)
	assert.Equal(t, map[string]db.ProfileStatus{"p": db.StatusBanned}, statuses)
}
