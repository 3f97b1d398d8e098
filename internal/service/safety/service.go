package safety

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/audit"
	"github.com/oggyb/campus-match/internal/contentguard"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/metrics"
	"github.com/oggyb/campus-match/internal/ratelimit"
	"github.com/oggyb/campus-match/internal/repository"
)

const (
	MaxReasonLength  = 100
	MaxDetailsLength = 500
)

// Reasons is the vocabulary offered by clients. Free text is accepted too.
var Reasons = []string{
	"Inappropriate photos",
	"Harassment",
	"Spam or scam",
	"Fake profile",
	"Underage user",
	"Hate speech",
	"Other",
}

type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
	reportRepo  *repository.ReportRepository
}

func NewSafetyService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		reportRepo:  repository.NewReportRepository(appCtx.DB),
	}
}

type SubmitReportRequest struct {
	ReportedUserID string `json:"reported_user_id"`
	Reason         string `json:"reason"`
	Details        string `json:"details,omitempty"`
}

type SubmitReportResponse struct {
	ReportID string `json:"report_id"`
}

// SubmitReport files an abuse report against another user.
//
// Behavior:
//   - Gated by the report rate limit class, keyed on the reporter.
//   - Reason and details pass the content guard; details are optional.
//   - Reporting the same user again is allowed.
//
// Example:
//
//	svc.SubmitReport(ctx, &SubmitReportRequest{ReportedUserID: "u2", Reason: "Harassment"})
func (s *Service) SubmitReport(ctx context.Context, req *SubmitReportRequest) (*SubmitReportResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("SubmitReport called", "reporter", caller.UserID, "reported", req.ReportedUserID)

	if err := s.appCtx.Limiter.Enforce(ctx, ratelimit.ClassReport, caller.UserID); err != nil {
		return nil, err
	}

	reportedID := strings.TrimSpace(req.ReportedUserID)
	reason := strings.TrimSpace(req.Reason)
	details := strings.TrimSpace(req.Details)
	switch {
	case reportedID == "":
		return nil, svcErr.Validation("reported_user_id", "reported_user_id is required")
	case reportedID == caller.UserID:
		return nil, svcErr.Validation("reported_user_id", "You cannot report yourself")
	case reason == "":
		return nil, svcErr.Validation("reason", "Select a reason for the report")
	case utf8.RuneCountInString(reason) > MaxReasonLength:
		return nil, svcErr.Validation("reason", "Reason must be at most 100 characters")
	case utf8.RuneCountInString(details) > MaxDetailsLength:
		return nil, svcErr.Validation("details", "Details must be at most 500 characters")
	}
	if err := s.appCtx.CheckContent(ctx, caller.UserID, []contentguard.Field{
		{Name: "reason", Label: "Reason", Text: reason},
		{Name: "details", Label: "Details", Text: details},
	}); err != nil {
		return nil, err
	}

	reported, err := s.profileRepo.Find(ctx, reportedID)
	if err != nil {
		return nil, svcErr.Persistence("load reported profile", err)
	}
	if reported == nil {
		return nil, svcErr.NotFound("user not found")
	}

	rep := &db.Report{
		ReporterID: caller.UserID,
		ReportedID: reportedID,
		Reason:     reason,
		Details:    details,
	}
	if err := s.reportRepo.Create(ctx, rep); err != nil {
		return nil, svcErr.Persistence("create report", err)
	}

	metrics.ReportsSubmitted.Inc()
	s.appCtx.Audit.Record(ctx, audit.Entry{
		Type:     audit.EventReportSubmitted,
		ActorID:  caller.UserID,
		TargetID: reportedID,
		Details:  map[string]any{"report_id": rep.ID, "reason": reason},
	})
	s.appCtx.Publish(ctx, events.New(events.TableReports, events.OpInsert, rep.ID, rep))
	s.appCtx.Logger.Info("report submitted", "report", rep.ID, "reporter", caller.UserID, "reported", reportedID)

	return &SubmitReportResponse{ReportID: rep.ID}, nil
}
