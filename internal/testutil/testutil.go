// Package testutil wires in-memory backends for package tests.
package testutil

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/campus-match/internal/db"
)

// NewDB opens a migrated in-memory SQLite database private to the test.
// A single connection keeps the shared-cache database alive and avoids
// SQLITE_LOCKED between goroutines.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// NewRedis starts a miniredis server and a client pointed at it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// Clock is a settable time source for code that accepts func() time.Time.
type Clock struct {
	T time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{T: t} }

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// Profile builds an approved profile with sane defaults.
func Profile(id, gender, preferred string) db.Profile {
	return db.Profile{
		UserID:    id,
		EmailHash: strings.Repeat("0", 64),
		PublicFields: db.PublicFields{
			Nickname:        "nick " + id,
			PhotoURLs:       []string{"https://cdn.test/" + id + "/0.jpg"},
			College:         "CCS",
			YearLevel:       2,
			Hobbies:         []string{"music"},
			Description:     "hello",
			Gender:          gender,
			PreferredGender: preferred,
		},
		LookingFor:  "Dating",
		Status:      db.StatusApproved,
		SubmittedAt: time.Now().UTC(),
	}
}

// SeedProfiles inserts profiles as-is.
func SeedProfiles(t *testing.T, gdb *gorm.DB, profiles ...db.Profile) {
	t.Helper()
	for i := range profiles {
		require.NoError(t, gdb.Create(&profiles[i]).Error)
	}
}

// AfterProfileRead runs fn once, right after the first completed query that
// reads userID's profile. Tests use it to commit a concurrent write between a
// service's read and its following write.
func AfterProfileRead(t *testing.T, gdb *gorm.DB, userID string, fn func()) {
	t.Helper()
	var fired atomic.Bool
	name := "testutil:after_profile_read:" + t.Name()
	err := gdb.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != "profiles" || fired.Load() {
			return
		}
		if !slices.ContainsFunc(tx.Statement.Vars, func(v any) bool {
			s, ok := v.(string)
			return ok && s == userID
		}) {
			return
		}
		fired.Store(true)
		fn()
	})
	require.NoError(t, err)
}

// Ban marks userID banned directly in the database.
func Ban(t *testing.T, gdb *gorm.DB, userID string) {
	t.Helper()
	require.NoError(t, gdb.Model(&db.Profile{}).Where("user_id = ?", userID).Update("status", db.StatusBanned).Error)
}
