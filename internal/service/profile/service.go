package profile

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/audit"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/moderation"
	"github.com/oggyb/campus-match/internal/ratelimit"
	"github.com/oggyb/campus-match/internal/repository"
)

// Service implements the owner side of the profile lifecycle.
type Service struct {
	appCtx           *app.AppContext
	profileRepo      *repository.ProfileRepository
	swipeRepo        *repository.SwipeRepository
	matchRepo        *repository.MatchRepository
	messageRepo      *repository.MessageRepository
	notificationRepo *repository.NotificationRepository
	reportRepo       *repository.ReportRepository
}

// NewProfileService creates a new Profile service with dependencies from AppContext.
func NewProfileService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:           appCtx,
		profileRepo:      repository.NewProfileRepository(appCtx.DB),
		swipeRepo:        repository.NewSwipeRepository(appCtx.DB),
		matchRepo:        repository.NewMatchRepository(appCtx.DB),
		messageRepo:      repository.NewMessageRepository(appCtx.DB),
		notificationRepo: repository.NewNotificationRepository(appCtx.DB),
		reportRepo:       repository.NewReportRepository(appCtx.DB),
	}
}

type SubmitProfileRequest struct {
	Nickname        string   `json:"nickname"`
	PhotoURLs       []string `json:"photo_urls"`
	College         string   `json:"college"`
	YearLevel       int      `json:"year_level"`
	Hobbies         []string `json:"hobbies"`
	Description     string   `json:"description"`
	Gender          string   `json:"gender"`
	PreferredGender string   `json:"preferred_gender"`
	LookingFor      string   `json:"looking_for"`
	AgeConfirmed    bool     `json:"age_confirmed"`
	TermsAccepted   bool     `json:"terms_accepted"`
}

func (r *SubmitProfileRequest) submission() moderation.Submission {
	return moderation.Submission{
		Nickname:        r.Nickname,
		PhotoURLs:       r.PhotoURLs,
		College:         r.College,
		YearLevel:       r.YearLevel,
		Hobbies:         r.Hobbies,
		Description:     r.Description,
		Gender:          r.Gender,
		PreferredGender: r.PreferredGender,
		LookingFor:      r.LookingFor,
		AgeConfirmed:    r.AgeConfirmed,
		TermsAccepted:   r.TermsAccepted,
	}.Normalize()
}

// ProfileView is the owner's view of their own profile.
type ProfileView struct {
	moderation.PublicProfile
	PreferredGender string                    `json:"preferred_gender,omitempty"`
	Status          string                    `json:"status"`
	IsBanned        bool                      `json:"is_banned"`
	RejectReason    string                    `json:"reject_reason,omitempty"`
	SubmittedAtMs   int64                     `json:"submitted_at_ms"`
	ReviewedAtMs    int64                     `json:"reviewed_at_ms,omitempty"`
	Approved        *moderation.PublicProfile `json:"approved,omitempty"`
}

// View renders p for its owner or for a moderator.
func View(p *db.Profile) *ProfileView {
	v := &ProfileView{
		PublicProfile:   moderation.PublicView(p.UserID, p.PublicFields, p.LookingFor),
		PreferredGender: p.PreferredGender,
		Status:          moderation.WireStatus(p),
		IsBanned:        p.IsBanned(),
		RejectReason:    p.RejectReason,
		SubmittedAtMs:   p.SubmittedAt.UnixMilli(),
	}
	if p.ReviewedAt != nil {
		v.ReviewedAtMs = p.ReviewedAt.UnixMilli()
	}
	if p.HasSnapshot() {
		snap := moderation.PublicView(p.UserID, p.Approved, p.LookingFor)
		v.Approved = &snap
	}
	return v
}

// SubmitProfile creates or edits the caller's profile and queues it for review.
//
// Behavior:
//   - Gated by the profile rate limit class, keyed on the caller.
//   - Structural rules first, then the content guard on every free-text field.
//   - Editing an approved profile snapshots its public fields into approved_*.
//   - The profile is always pending afterwards.
//
// Example:
//
//	svc.SubmitProfile(ctx, &SubmitProfileRequest{Nickname: "Ana", PhotoURLs: []string{"u1/1-0.jpg"}, ...})
func (s *Service) SubmitProfile(ctx context.Context, req *SubmitProfileRequest) (*ProfileView, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("SubmitProfile called", "user", caller.UserID)

	if err := s.appCtx.Limiter.Enforce(ctx, ratelimit.ClassProfile, caller.UserID); err != nil {
		return nil, err
	}

	existing, err := s.profileRepo.Find(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("load profile", err)
	}
	if existing != nil && existing.IsBanned() {
		return nil, svcErr.Banned()
	}

	sub := req.submission()
	if err := moderation.Validate(sub, existing, caller.EmailVerified); err != nil {
		return nil, err
	}
	if err := s.appCtx.CheckContent(ctx, caller.UserID, sub.GuardFields()); err != nil {
		return nil, err
	}

	p, err := moderation.Apply(existing, sub, moderation.Owner{
		UserID:    caller.UserID,
		EmailHash: caller.EmailHash(),
	}, s.appCtx.Now().UTC())
	if err != nil {
		return nil, err
	}
	var from db.ProfileStatus
	if existing != nil {
		from = existing.Status
	}
	saved, err := s.profileRepo.Save(ctx, p, from)
	if err != nil {
		return nil, svcErr.Persistence("save profile", err)
	}
	if !saved {
		// moderated or resubmitted since the read
		banned, err := s.profileRepo.IsBanned(ctx, caller.UserID)
		if err != nil {
			return nil, svcErr.Persistence("load profile", err)
		}
		if banned {
			return nil, svcErr.Banned()
		}
		return nil, svcErr.ModerationConflict("profile changed, please reload")
	}

	op := events.OpUpdate
	if existing == nil {
		op = events.OpInsert
	}
	s.appCtx.Publish(ctx, events.New(events.TableProfiles, op, p.UserID, View(p), p.UserID))
	s.appCtx.Logger.Info("profile submitted", "user", p.UserID, "first", existing == nil)

	return View(p), nil
}

type GetMyProfileRequest struct{}

// GetMyProfile returns the caller's profile, including moderation state.
func (s *Service) GetMyProfile(ctx context.Context, _ *GetMyProfileRequest) (*ProfileView, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.profileRepo.Find(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("load profile", err)
	}
	if p == nil {
		return nil, svcErr.NotFound("profile not found")
	}
	return View(p), nil
}

type DeleteAccountRequest struct{}

type DeleteAccountResponse struct {
	DeletedMatches int64 `json:"deleted_matches"`
}

// DeleteAccount removes the caller's profile and every row that depends on it.
//
// Behavior:
//   - One transaction: messages of the caller's matches, matches, swipes,
//     notifications, reports, then the profile.
//   - Audit entry account_deleted after commit.
//   - Partners receive a matches delete event; affected admirer counts are dropped.
func (s *Service) DeleteAccount(ctx context.Context, _ *DeleteAccountRequest) (*DeleteAccountResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("DeleteAccount called", "user", caller.UserID)

	matches, err := s.matchRepo.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("list matches", err)
	}
	admired, err := s.swipeRepo.RightSwipedIDs(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("list swipes", err)
	}

	var deleted int64
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.matchRepo.WithTx(tx).IDsForUser(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if _, err := s.messageRepo.WithTx(tx).DeleteByMatchIDs(ctx, ids); err != nil {
			return err
		}
		if deleted, err = s.matchRepo.WithTx(tx).DeleteForUser(ctx, caller.UserID); err != nil {
			return err
		}
		if err := s.swipeRepo.WithTx(tx).DeleteForUser(ctx, caller.UserID); err != nil {
			return err
		}
		if err := s.notificationRepo.WithTx(tx).DeleteForUser(ctx, caller.UserID); err != nil {
			return err
		}
		if err := s.reportRepo.WithTx(tx).DeleteForUser(ctx, caller.UserID); err != nil {
			return err
		}
		return s.profileRepo.WithTx(tx).Delete(ctx, caller.UserID)
	})
	if err != nil {
		return nil, svcErr.Persistence("delete account", err)
	}

	s.appCtx.Audit.Record(ctx, audit.Entry{
		Type:     audit.EventAccountDeleted,
		ActorID:  caller.UserID,
		TargetID: caller.UserID,
		Details:  map[string]any{"matches_deleted": deleted},
	})
	for i := range matches {
		m := &matches[i]
		s.appCtx.Publish(ctx, events.New(events.TableMatches, events.OpDelete, m.ID, nil, m.User1ID, m.User2ID))
	}
	s.appCtx.Publish(ctx, events.New(events.TableProfiles, events.OpDelete, caller.UserID, nil, caller.UserID))
	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.InvalidateAdmirerCounts(ctx, append(admired, caller.UserID)...); err != nil {
			s.appCtx.Logger.Warn("admirer count invalidation failed", "user", caller.UserID, "err", err)
		}
	}

	s.appCtx.Logger.Info("account deleted", "user", caller.UserID, "matches", deleted)
	return &DeleteAccountResponse{DeletedMatches: deleted}, nil
}
