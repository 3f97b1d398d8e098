package admin

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/audit"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/metrics"
	"github.com/oggyb/campus-match/internal/moderation"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/service/match"
	"github.com/oggyb/campus-match/internal/service/profile"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 200
	MaxRejectReasonLen = 255
)

// Service is the moderator console. Every method requires the admin role.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
	swipeRepo   *repository.SwipeRepository
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
	reportRepo  *repository.ReportRepository
}

func NewAdminService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		swipeRepo:   repository.NewSwipeRepository(appCtx.DB),
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		reportRepo:  repository.NewReportRepository(appCtx.DB),
	}
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

type ListPendingProfilesRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListPendingProfilesResponse struct {
	Profiles []*profile.ProfileView `json:"profiles"`
}

// ListPendingProfiles returns the review queue, oldest submission first.
func (s *Service) ListPendingProfiles(ctx context.Context, req *ListPendingProfilesRequest) (*ListPendingProfilesResponse, error) {
	if _, err := identity.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListPendingProfiles called", "limit", req.Limit)

	rows, err := s.profileRepo.ListByStatus(ctx, db.StatusPending, listLimit(req.Limit))
	if err != nil {
		return nil, svcErr.Persistence("list pending profiles", err)
	}
	out := make([]*profile.ProfileView, 0, len(rows))
	for i := range rows {
		out = append(out, profile.View(&rows[i]))
	}
	return &ListPendingProfilesResponse{Profiles: out}, nil
}

type ReviewProfileRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// ApproveProfile moves a pending profile to approved.
func (s *Service) ApproveProfile(ctx context.Context, req *ReviewProfileRequest) (*profile.ProfileView, error) {
	return s.review(ctx, req, db.StatusApproved)
}

// RejectProfile moves a pending profile to rejected with an optional reason.
func (s *Service) RejectProfile(ctx context.Context, req *ReviewProfileRequest) (*profile.ProfileView, error) {
	return s.review(ctx, req, db.StatusRejected)
}

// review applies an approve or reject decision.
//
// Behavior:
//   - Only a pending profile can be reviewed; any other state is a moderation conflict.
//   - The approved_* snapshot is left alone either way.
//   - Audit entry with the admin as actor and the owner as target.
func (s *Service) review(ctx context.Context, req *ReviewProfileRequest, to db.ProfileStatus) (*profile.ProfileView, error) {
	admin, err := identity.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("review called", "admin", admin.UserID, "user", req.UserID, "to", to)

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, svcErr.Validation("user_id", "user_id is required")
	}
	reason := ""
	if to == db.StatusRejected {
		reason = strings.TrimSpace(req.Reason)
		if utf8.RuneCountInString(reason) > MaxRejectReasonLen {
			return nil, svcErr.Validation("reason", "Reason must be at most 255 characters")
		}
	}

	ok, err := s.profileRepo.Review(ctx, userID, to, admin.UserID, reason, s.appCtx.Now().UTC())
	if err != nil {
		return nil, svcErr.Persistence("review profile", err)
	}
	if !ok {
		p, err := s.profileRepo.Find(ctx, userID)
		if err != nil {
			return nil, svcErr.Persistence("load profile", err)
		}
		if p == nil {
			return nil, svcErr.NotFound("profile not found")
		}
		if !moderation.CanTransition(p.Status, to) {
			return nil, svcErr.ModerationConflict("profile is not awaiting review")
		}
		// reviewed by someone else in the meantime
		return nil, svcErr.ModerationConflict("profile changed, please reload")
	}

	p, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, svcErr.Persistence("load profile", err)
	}

	event := audit.EventProfileApproved
	if to == db.StatusRejected {
		event = audit.EventProfileRejected
	}
	details := map[string]any{}
	if reason != "" {
		details["reason"] = reason
	}
	s.appCtx.Audit.Record(ctx, audit.Entry{
		Type:     event,
		ActorID:  admin.UserID,
		TargetID: userID,
		Details:  details,
	})

	view := profile.View(p)
	s.appCtx.Publish(ctx, events.New(events.TableProfiles, events.OpUpdate, userID, view, userID))
	s.appCtx.Logger.Info("profile reviewed", "admin", admin.UserID, "user", userID, "status", to)
	return view, nil
}

type ListReportsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ReportView struct {
	ID               string `json:"id"`
	ReporterID       string `json:"reporter_id"`
	ReporterNickname string `json:"reporter_nickname,omitempty"`
	ReportedID       string `json:"reported_id"`
	ReportedNickname string `json:"reported_nickname,omitempty"`
	Reason           string `json:"reason"`
	Details          string `json:"details,omitempty"`
	CreatedAtMs      int64  `json:"created_at_ms"`
}

type ListReportsResponse struct {
	Reports []ReportView `json:"reports"`
}

// ListReports returns open reports newest first with both nicknames resolved.
func (s *Service) ListReports(ctx context.Context, req *ListReportsRequest) (*ListReportsResponse, error) {
	if _, err := identity.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListReports called", "limit", req.Limit)

	reports, err := s.reportRepo.List(ctx, listLimit(req.Limit))
	if err != nil {
		return nil, svcErr.Persistence("list reports", err)
	}

	ids := make([]string, 0, 2*len(reports))
	for _, r := range reports {
		ids = append(ids, r.ReporterID, r.ReportedID)
	}
	names, err := s.profileRepo.Nicknames(ctx, ids)
	if err != nil {
		return nil, svcErr.Persistence("load nicknames", err)
	}

	out := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		out = append(out, ReportView{
			ID:               r.ID,
			ReporterID:       r.ReporterID,
			ReporterNickname: names[r.ReporterID],
			ReportedID:       r.ReportedID,
			ReportedNickname: names[r.ReportedID],
			Reason:           r.Reason,
			Details:          r.Details,
			CreatedAtMs:      r.CreatedAt.UnixMilli(),
		})
	}
	return &ListReportsResponse{Reports: out}, nil
}

type BanUserRequest struct {
	ReportedUserID string `json:"reported_user_id"`
	ReportID       string `json:"report_id"`
}

type BanUserResponse struct {
	DeletedMatches  int64 `json:"deleted_matches"`
	DeletedMessages int64 `json:"deleted_messages"`
}

// BanUser bans the reported user and resolves the report.
//
// Behavior:
//   - One transaction: lock the profile row, then messages of the user's matches,
//     the matches, status = banned, then the report row. Any failure rolls
//     everything back.
//   - A report about someone else is a validation error; a report already
//     gone is ignored.
//   - Swipes stay; the banned user drops out of every candidate and admirer view.
//   - Audit entry user_banned after commit.
//   - Former partners receive matches delete events; admins receive the
//     profiles update and reports delete.
//
// Example:
//
//	svc.BanUser(ctx, &BanUserRequest{ReportedUserID: "u9", ReportID: "r1"})
func (s *Service) BanUser(ctx context.Context, req *BanUserRequest) (*BanUserResponse, error) {
	admin, err := identity.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("BanUser called", "admin", admin.UserID, "user", req.ReportedUserID, "report", req.ReportID)

	userID := strings.TrimSpace(req.ReportedUserID)
	if userID == "" {
		return nil, svcErr.Validation("reported_user_id", "reported_user_id is required")
	}
	if userID == admin.UserID {
		return nil, svcErr.Validation("reported_user_id", "You cannot ban yourself")
	}

	matches, err := s.matchRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Persistence("list matches", err)
	}
	admired, err := s.swipeRepo.RightSwipedIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Persistence("list swipes", err)
	}

	var (
		resp          BanUserResponse
		reportDeleted bool
	)
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serializes with match creation, which locks the same rows
		statuses, err := s.profileRepo.WithTx(tx).LockStatuses(ctx, userID)
		if err != nil {
			return err
		}
		if _, ok := statuses[userID]; !ok {
			return gorm.ErrRecordNotFound
		}

		ids, err := s.matchRepo.WithTx(tx).IDsForUser(ctx, userID)
		if err != nil {
			return err
		}
		if resp.DeletedMessages, err = s.messageRepo.WithTx(tx).DeleteByMatchIDs(ctx, ids); err != nil {
			return err
		}
		if resp.DeletedMatches, err = s.matchRepo.WithTx(tx).DeleteForUser(ctx, userID); err != nil {
			return err
		}
		found, err := s.profileRepo.WithTx(tx).MarkBanned(ctx, userID, admin.UserID, s.appCtx.Now().UTC())
		if err != nil {
			return err
		}
		if !found {
			return gorm.ErrRecordNotFound
		}
		if req.ReportID == "" {
			return nil
		}
		reports := s.reportRepo.WithTx(tx)
		rep, err := reports.Get(ctx, req.ReportID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// already resolved by another moderator
			return nil
		case err != nil:
			return err
		case rep.ReportedID != userID:
			return svcErr.Validation("report_id", "Report is about another user")
		}
		reportDeleted, err = reports.Delete(ctx, rep.ID)
		return err
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, svcErr.NotFound("user not found")
	case svcErr.Is(err, svcErr.KindValidation):
		return nil, err
	case err != nil:
		return nil, svcErr.Persistence("ban user", err)
	}

	metrics.Bans.Inc()
	s.appCtx.Audit.Record(ctx, audit.Entry{
		Type:     audit.EventUserBanned,
		ActorID:  admin.UserID,
		TargetID: userID,
		Details: map[string]any{
			"report_id":        req.ReportID,
			"matches_deleted":  resp.DeletedMatches,
			"messages_deleted": resp.DeletedMessages,
		},
	})

	for i := range matches {
		m := &matches[i]
		s.appCtx.Publish(ctx, events.New(events.TableMatches, events.OpDelete, m.ID, nil, m.User1ID, m.User2ID))
	}
	s.appCtx.Publish(ctx, events.New(events.TableProfiles, events.OpUpdate, userID, map[string]any{
		"status":    string(db.StatusRejected),
		"is_banned": true,
	}, userID))
	if reportDeleted {
		s.appCtx.Publish(ctx, events.New(events.TableReports, events.OpDelete, req.ReportID, nil))
	}
	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.InvalidateAdmirerCounts(ctx, append(admired, userID)...); err != nil {
			s.appCtx.Logger.Warn("admirer count invalidation failed", "user", userID, "err", err)
		}
	}

	s.appCtx.Logger.Info("user banned",
		"admin", admin.UserID,
		"user", userID,
		"report", req.ReportID,
		"matches", resp.DeletedMatches,
	)
	return &resp, nil
}

type GetChatHistoryRequest struct {
	ReporterID string `json:"reporter_id"`
	ReportedID string `json:"reported_id"`
}

type GetChatHistoryResponse struct {
	MatchID  string              `json:"match_id,omitempty"`
	Messages []match.MessageView `json:"messages"`
}

// GetChatHistory shows a moderator the conversation between the two sides of
// a report. No match between them yields an empty history.
func (s *Service) GetChatHistory(ctx context.Context, req *GetChatHistoryRequest) (*GetChatHistoryResponse, error) {
	admin, err := identity.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("GetChatHistory called", "admin", admin.UserID, "reporter", req.ReporterID, "reported", req.ReportedID)

	if req.ReporterID == "" || req.ReportedID == "" {
		return nil, svcErr.InvalidArgument("reporter_id and reported_id are required")
	}

	m, err := s.matchRepo.GetByPair(ctx, req.ReporterID, req.ReportedID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &GetChatHistoryResponse{Messages: []match.MessageView{}}, nil
	}
	if err != nil {
		return nil, svcErr.Persistence("load match", err)
	}

	msgs, err := s.messageRepo.ListByMatch(ctx, m.ID)
	if err != nil {
		return nil, svcErr.Persistence("list messages", err)
	}
	return &GetChatHistoryResponse{MatchID: m.ID, Messages: match.MessageViews(msgs)}, nil
}

type QueryAuditRequest struct {
	EventType     string `json:"event_type,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type AuditEntryView struct {
	ID          uint64         `json:"id"`
	EventType   string         `json:"event_type"`
	ActorID     string         `json:"actor_id,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	IP          string         `json:"ip,omitempty"`
	CreatedAtMs int64          `json:"created_at_ms"`
}

type QueryAuditResponse struct {
	Entries []AuditEntryView `json:"entries"`
}

// QueryAudit reads the audit trail newest first.
func (s *Service) QueryAudit(ctx context.Context, req *QueryAuditRequest) (*QueryAuditResponse, error) {
	if _, err := identity.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("QueryAudit called", "event", req.EventType, "participant", req.ParticipantID)

	if req.EventType != "" && !audit.ValidEventType(req.EventType) {
		return nil, svcErr.Validation("event_type", "unknown event type")
	}

	entries, err := s.appCtx.Audit.Query(ctx, repository.AuditFilter{
		EventType:     req.EventType,
		ParticipantID: req.ParticipantID,
	}, req.Limit)
	if err != nil {
		return nil, svcErr.Persistence("query audit", err)
	}

	out := make([]AuditEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryView{
			ID:          e.ID,
			EventType:   e.EventType,
			ActorID:     deref(e.ActorID),
			TargetID:    deref(e.TargetID),
			Details:     e.Details,
			IP:          deref(e.IP),
			CreatedAtMs: e.CreatedAt.UnixMilli(),
		})
	}
	return &QueryAuditResponse{Entries: out}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
