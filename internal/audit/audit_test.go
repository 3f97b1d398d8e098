package audit_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campus-match/internal/audit"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
)

func TestRecordAndQuery(t *testing.T) {
	gdb := testutil.NewDB(t)
	rec := audit.NewRecorder(repository.NewAuditRepository(gdb), logger.Discard())

	ctx := identity.WithClientIP(context.Background(), "10.1.2.3")
	rec.Record(ctx, audit.Entry{Type: audit.EventProfileApproved, ActorID: "admin", TargetID: "u1"})
	rec.Record(ctx, audit.Entry{Type: audit.EventReportSubmitted, ActorID: "u2", TargetID: "u3",
		Details: map[string]any{"reason": "spam"}})
	rec.Record(ctx, audit.Entry{Type: audit.EventRateLimitExceeded,
		Details: map[string]any{"class": "message", "identifier": "u1"}})

	all, err := rec.Query(context.Background(), repository.AuditFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, string(audit.EventRateLimitExceeded), all[0].EventType, "newest first")
	assert.Nil(t, all[0].ActorID)
	require.NotNil(t, all[0].IP)
	assert.Equal(t, "10.1.2.3", *all[0].IP)

	byType, err := rec.Query(context.Background(), repository.AuditFilter{EventType: "report_submitted"}, 10)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "spam", byType[0].Details["reason"])

	byUser, err := rec.Query(context.Background(), repository.AuditFilter{ParticipantID: "u1"}, 10)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, string(audit.EventProfileApproved), byUser[0].EventType)
}

func TestRecordSurvivesCanceledContext(t *testing.T) {
	gdb := testutil.NewDB(t)
	rec := audit.NewRecorder(repository.NewAuditRepository(gdb), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, audit.Entry{Type: audit.EventUserBanned, ActorID: "admin", TargetID: "u9"})

	var count int64
	require.NoError(t, gdb.Model(&db.AuditLogEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordFailureIsLoggedNotReturned(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, gdb.Migrator().DropTable(&db.AuditLogEntry{}))

	var buf bytes.Buffer
	log := logger.New(&buf, logger.Config{Level: "debug", Format: logger.FormatText})
	rec := audit.NewRecorder(repository.NewAuditRepository(gdb), log)

	done := make(chan struct{})
	go func() {
		rec.Record(context.Background(), audit.Entry{Type: audit.EventUserBanned, TargetID: "u9"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("audit write blocked the caller")
	}
	assert.Contains(t, buf.String(), "audit write failed")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *audit.Recorder
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), audit.Entry{Type: audit.EventUserBanned})
	})
}

func TestValidEventType(t *testing.T) {
	assert.True(t, audit.ValidEventType("user_banned"))
	assert.False(t, audit.ValidEventType("profile_deleted"))
}
