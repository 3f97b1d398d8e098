// Package audit appends security relevant events to the audit log.
//
// Writes are best-effort: a failed write is logged and counted but never
// returned to the caller, so it cannot fail the action it describes.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/metrics"
	"github.com/oggyb/campus-match/internal/repository"
)

type EventType string

const (
	EventProfileApproved      EventType = "profile_approved"
	EventProfileRejected      EventType = "profile_rejected"
	EventUserBanned           EventType = "user_banned"
	EventReportSubmitted      EventType = "report_submitted"
	EventRateLimitExceeded    EventType = "rate_limit_exceeded"
	EventContentBlocked       EventType = "content_blocked"
	EventBannedSessionRevoked EventType = "banned_session_revoked"
	EventAccountDeleted       EventType = "account_deleted"
)

var eventTypes = map[EventType]struct{}{
	EventProfileApproved:      {},
	EventProfileRejected:      {},
	EventUserBanned:           {},
	EventReportSubmitted:      {},
	EventRateLimitExceeded:    {},
	EventContentBlocked:       {},
	EventBannedSessionRevoked: {},
	EventAccountDeleted:       {},
}

// ValidEventType reports whether s names a known event.
func ValidEventType(s string) bool {
	_, ok := eventTypes[EventType(s)]
	return ok
}

// DefaultWriteTimeout bounds a single audit insert.
const DefaultWriteTimeout = 2 * time.Second

// Entry is one event to record. Empty ids and IP are stored as NULL.
// When IP is empty the client address carried by ctx is used.
type Entry struct {
	Type     EventType
	ActorID  string
	TargetID string
	Details  map[string]any
	IP       string
}

// Recorder writes and reads audit entries.
type Recorder struct {
	repo    *repository.AuditRepository
	log     *slog.Logger
	timeout time.Duration
}

func NewRecorder(repo *repository.AuditRepository, log *slog.Logger) *Recorder {
	return &Recorder{repo: repo, log: log, timeout: DefaultWriteTimeout}
}

// Record appends e. The write survives cancellation of ctx but is bounded by
// the recorder timeout.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.repo == nil {
		return
	}

	ip := e.IP
	if ip == "" {
		ip = identity.ClientIP(ctx)
	}
	row := &db.AuditLogEntry{
		EventType: string(e.Type),
		ActorID:   nullable(e.ActorID),
		TargetID:  nullable(e.TargetID),
		Details:   e.Details,
		IP:        nullable(ip),
	}
	if row.Details == nil {
		row.Details = map[string]any{}
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.repo.Insert(wctx, row); err != nil {
		metrics.AuditWriteFailures.Inc()
		r.log.Error("audit write failed",
			"event", e.Type,
			"actor", e.ActorID,
			"target", e.TargetID,
			"err", err,
		)
	}
}

// Query returns entries newest first, optionally filtered by type or participant.
func (r *Recorder) Query(ctx context.Context, f repository.AuditFilter, limit int) ([]db.AuditLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.repo.Query(ctx, f, limit)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
