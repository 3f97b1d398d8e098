package explore

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/metrics"
	"github.com/oggyb/campus-match/internal/mission"
	"github.com/oggyb/campus-match/internal/moderation"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/utils/pagination"
)

const (
	defaultCandidateLimit = 50
	defaultAdmirerLimit   = 20
	maxAdmirerLimit       = 100
)

var errNoLongerAvailable = svcErr.ModerationConflict("this profile is not available")

// Service implements the Explore gRPC API: the swipe queue, swipes and
// the secret admirer list.
type Service struct {
	appCtx           *app.AppContext
	profileRepo      *repository.ProfileRepository
	swipeRepo        *repository.SwipeRepository
	matchRepo        *repository.MatchRepository
	notificationRepo *repository.NotificationRepository

	rng *rand.Rand // nil uses the global source
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (profile, swipe, match and notification repositories)
//   - RedisCache for admirer counters
//   - Bus for realtime match and notification events
func NewExploreService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:           appCtx,
		profileRepo:      repository.NewProfileRepository(appCtx.DB),
		swipeRepo:        repository.NewSwipeRepository(appCtx.DB),
		matchRepo:        repository.NewMatchRepository(appCtx.DB),
		notificationRepo: repository.NewNotificationRepository(appCtx.DB),
	}
}

type GetCandidatesRequest struct {
	PageToken string `json:"page_token,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type GetCandidatesResponse struct {
	Candidates    []moderation.PublicProfile `json:"candidates"`
	NextPageToken string                     `json:"next_page_token,omitempty"`
}

// GetCandidates returns the caller's swipe queue.
//
// Behavior:
//   - The caller must be able to browse (approved, or re-editing after approval).
//   - Excludes the caller and everyone they already swiped, computed by the DB.
//   - Only approved, gender-compatible profiles are returned.
//   - Ordered by user id; PageToken continues a previous page.
//   - An empty list is a valid answer.
//
// Example:
//
//	svc.GetCandidates(ctx, &GetCandidatesRequest{Limit: 20})
func (s *Service) GetCandidates(ctx context.Context, req *GetCandidatesRequest) (*GetCandidatesResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("GetCandidates called", "user", caller.UserID, "token", req.PageToken)

	me, err := s.requireBrowser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	cursor, err := pagination.Decode(req.PageToken)
	if err != nil {
		return nil, svcErr.Validation("page_token", "invalid pagination token")
	}

	limit := s.candidateLimit(req.Limit)
	profiles, err := s.profileRepo.ListCandidates(ctx, repository.CandidateQuery{
		Requester: me,
		AfterID:   cursor.ID,
		Limit:     limit + 1,
	})
	if err != nil {
		return nil, svcErr.Persistence("list candidates", err)
	}

	hasMore := len(profiles) > limit
	if hasMore {
		profiles = profiles[:limit]
	}

	resp := &GetCandidatesResponse{Candidates: make([]moderation.PublicProfile, 0, len(profiles))}
	for _, p := range profiles {
		resp.Candidates = append(resp.Candidates, moderation.PublicView(p.UserID, p.PublicFields, p.LookingFor))
	}
	if len(profiles) > 0 {
		resp.NextPageToken = pagination.Next(hasMore, pagination.Cursor{ID: profiles[len(profiles)-1].UserID})
	}

	s.appCtx.Logger.Debug("GetCandidates result", "count", len(resp.Candidates), "next_token", resp.NextPageToken)
	return resp, nil
}

type RecordSwipeRequest struct {
	TargetUserID string `json:"target_user_id"`
	Direction    string `json:"direction"`
}

type RecordSwipeResponse struct {
	Matched          bool   `json:"matched"`
	WasSecretAdmirer bool   `json:"was_secret_admirer"`
	LostMatch        bool   `json:"lost_match"`
	MatchID          string `json:"match_id,omitempty"`
}

// RecordSwipe stores the caller's decision on a target and resolves matches.
//
// Behavior:
//   - Reads whether the target already swiped right on the caller (secret admirer).
//   - Inserts the swipe once; a repeated swipe keeps the original direction.
//   - Right + reciprocal → exactly one match with three distinct missions, the
//     pending like is marked read and both users get a match notification.
//   - Right, not reciprocal → one like notification for the target.
//   - Left on a secret admirer → lost_match, and their like is marked read.
//   - If anything after the insert fails, the inserted swipe is deleted again
//     and a retryable error is returned.
//
// Example:
//
//	svc.RecordSwipe(ctx, &RecordSwipeRequest{TargetUserID: "u2", Direction: "right"})
func (s *Service) RecordSwipe(ctx context.Context, req *RecordSwipeRequest) (*RecordSwipeResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug(
		"RecordSwipe called",
		"swiper", caller.UserID,
		"swiped", req.TargetUserID,
		"direction", req.Direction,
	)

	direction := db.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	if direction != db.DirectionLeft && direction != db.DirectionRight {
		return nil, svcErr.Validation("direction", "direction must be left or right")
	}
	targetID := strings.TrimSpace(req.TargetUserID)
	if targetID == "" {
		return nil, svcErr.Validation("target_user_id", "target_user_id is required")
	}
	if targetID == caller.UserID {
		return nil, svcErr.Validation("target_user_id", "you cannot swipe on yourself")
	}

	if _, err := s.requireBrowser(ctx, caller.UserID); err != nil {
		return nil, err
	}
	target, err := s.profileRepo.Find(ctx, targetID)
	if err != nil {
		return nil, svcErr.Persistence("load target profile", err)
	}
	if target == nil {
		return nil, svcErr.NotFound("profile not found")
	}
	if !target.Visible() {
		return nil, svcErr.ModerationConflict("this profile is not available")
	}

	wasAdmirer, err := s.swipeRepo.HasSwipedRight(ctx, targetID, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("check secret admirer", err)
	}

	swipe, created, err := s.swipeRepo.Insert(ctx, caller.UserID, targetID, direction)
	if err != nil {
		return nil, svcErr.Persistence("insert swipe", err)
	}
	if !created {
		s.appCtx.Logger.Debug("swipe already recorded", "swiper", caller.UserID, "swiped", targetID, "direction", swipe.Direction)
	}

	resp := &RecordSwipeResponse{WasSecretAdmirer: wasAdmirer}
	switch {
	case swipe.Direction == db.DirectionRight:
		err = s.resolveRightSwipe(ctx, caller.UserID, targetID, resp)
	case wasAdmirer:
		resp.LostMatch = true
		err = s.notificationRepo.MarkRead(ctx, caller.UserID, targetID, db.NotificationLike)
	}
	if err != nil {
		if created {
			s.compensateSwipe(ctx, caller.UserID, targetID)
		}
		if svcErr.Is(err, svcErr.KindModerationConflict) {
			return nil, err
		}
		return nil, svcErr.Persistence("record swipe", err)
	}

	if created {
		metrics.Swipes.WithLabelValues(string(swipe.Direction)).Inc()
	}
	s.invalidateAdmirerCounts(ctx, caller.UserID, targetID)

	s.appCtx.Logger.Debug("RecordSwipe result",
		"matched", resp.Matched,
		"secret_admirer", resp.WasSecretAdmirer,
		"lost_match", resp.LostMatch,
	)
	return resp, nil
}

// resolveRightSwipe creates the match when the right swipe is reciprocal and
// the like notification when it is not.
func (s *Service) resolveRightSwipe(ctx context.Context, swiperID, swipedID string, resp *RecordSwipeResponse) error {
	mutual, err := s.swipeRepo.HasSwipedRight(ctx, swipedID, swiperID)
	if err != nil {
		return err
	}

	if !mutual {
		n, created, err := s.notificationRepo.CreateIfAbsent(ctx, swipedID, swiperID, db.NotificationLike)
		if err != nil {
			return err
		}
		if created {
			s.appCtx.Publish(ctx, events.New(events.TableNotifications, events.OpInsert, n.ID, n, swipedID))
		}
		return nil
	}

	var (
		match         db.Match
		matchCreated  bool
		notifications []*db.Notification
	)
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// re-check under lock; a ban may have committed since the target was read
		statuses, err := s.profileRepo.WithTx(tx).LockStatuses(ctx, swiperID, swipedID)
		if err != nil {
			return err
		}
		swiper, ok := statuses[swiperID]
		if !ok || swiper == db.StatusBanned || statuses[swipedID] != db.StatusApproved {
			return errNoLongerAvailable
		}

		missions := mission.Assign(s.rng)
		m, created, err := s.matchRepo.WithTx(tx).CreateIfAbsent(ctx, &db.Match{
			User1ID:       swiperID,
			User2ID:       swipedID,
			Mission1ID:    missions[0],
			Mission2ID:    missions[1],
			Mission3ID:    missions[2],
			MissionNumber: 1,
		})
		if err != nil {
			return err
		}
		match, matchCreated = m, created

		notes := s.notificationRepo.WithTx(tx)
		if err := notes.MarkRead(ctx, swiperID, swipedID, db.NotificationLike); err != nil {
			return err
		}
		for _, pair := range [][2]string{{swipedID, swiperID}, {swiperID, swipedID}} {
			n, created, err := notes.CreateIfAbsent(ctx, pair[0], pair[1], db.NotificationMatch)
			if err != nil {
				return err
			}
			if created {
				notifications = append(notifications, n)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	resp.Matched = true
	resp.MatchID = match.ID

	if matchCreated {
		metrics.MatchesCreated.Inc()
		s.appCtx.Logger.Info("match created", "match", match.ID, "user1", match.User1ID, "user2", match.User2ID)
		s.appCtx.Publish(ctx, events.New(events.TableMatches, events.OpInsert, match.ID, match, match.User1ID, match.User2ID))
	}
	for _, n := range notifications {
		s.appCtx.Publish(ctx, events.New(events.TableNotifications, events.OpInsert, n.ID, n, n.RecipientID))
	}
	return nil
}

func (s *Service) compensateSwipe(ctx context.Context, swiperID, swipedID string) {
	if err := s.swipeRepo.Delete(context.WithoutCancel(ctx), swiperID, swipedID); err != nil {
		s.appCtx.Logger.Error("swipe compensation failed",
			"swiper", swiperID,
			"swiped", swipedID,
			"err", err,
		)
		return
	}
	s.appCtx.Logger.Warn("swipe rolled back", "swiper", swiperID, "swiped", swipedID)
}

type ListAdmirersRequest struct {
	PageToken string `json:"page_token,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type Admirer struct {
	UserID     string `json:"user_id"`
	SwipedAtMs int64  `json:"swiped_at_ms"`
}

type ListAdmirersResponse struct {
	Admirers      []Admirer `json:"admirers"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// ListAdmirers returns users who swiped right on the caller and have not been
// answered yet, newest first.
//
// Example:
//
//	svc.ListAdmirers(ctx, &ListAdmirersRequest{Limit: 20})
func (s *Service) ListAdmirers(ctx context.Context, req *ListAdmirersRequest) (*ListAdmirersResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListAdmirers called", "user", caller.UserID, "token", req.PageToken)

	limit := req.Limit
	if limit <= 0 {
		limit = defaultAdmirerLimit
	}
	limit = min(limit, maxAdmirerLimit)

	swipes, next, err := s.swipeRepo.ListAdmirers(ctx, caller.UserID, req.PageToken, limit)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidToken) {
			return nil, svcErr.Validation("page_token", "invalid pagination token")
		}
		return nil, svcErr.Persistence("list admirers", err)
	}

	resp := &ListAdmirersResponse{Admirers: make([]Admirer, 0, len(swipes)), NextPageToken: next}
	for _, sw := range swipes {
		resp.Admirers = append(resp.Admirers, Admirer{UserID: sw.SwiperID, SwipedAtMs: sw.CreatedAt.UnixMilli()})
	}
	return resp, nil
}

type CountAdmirersRequest struct{}

type CountAdmirersResponse struct {
	Count int64 `json:"count"`
}

// CountAdmirers returns how many unanswered right swipes the caller has.
// Cache-first strategy:
//  1. Attempts to read from Redis (admirers:count:userID).
//  2. On a miss or cache error, falls back to the DB.
//  3. On DB fetch, updates Redis with a 1h TTL.
//
// Every swipe involving the user drops the cached value.
func (s *Service) CountAdmirers(ctx context.Context, _ *CountAdmirersRequest) (*CountAdmirersResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("CountAdmirers called", "user", caller.UserID)

	if rc := s.appCtx.RedisCache; rc != nil {
		n, ok, err := rc.GetAdmirerCount(ctx, caller.UserID)
		if err != nil {
			s.appCtx.Logger.Warn("admirer count cache read failed", "user", caller.UserID, "err", err)
		} else if ok {
			return &CountAdmirersResponse{Count: n}, nil
		}
	}

	// fallback: DB
	count, err := s.swipeRepo.CountAdmirers(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("count admirers", err)
	}

	if rc := s.appCtx.RedisCache; rc != nil {
		if err := rc.SetAdmirerCount(ctx, caller.UserID, count); err != nil {
			s.appCtx.Logger.Warn("admirer count cache write failed", "user", caller.UserID, "err", err)
		}
	}
	return &CountAdmirersResponse{Count: count}, nil
}

func (s *Service) requireBrowser(ctx context.Context, userID string) (*db.Profile, error) {
	me, err := s.profileRepo.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ModerationConflict("create a profile before exploring")
	}
	if err != nil {
		return nil, svcErr.Persistence("load profile", err)
	}
	if !moderation.CanBrowse(me) {
		return nil, svcErr.ModerationConflict("your profile is awaiting approval")
	}
	return me, nil
}

func (s *Service) candidateLimit(requested int) int {
	limit := defaultCandidateLimit
	if cfg := s.appCtx.Config; cfg != nil && cfg.Match.CandidateLimit > 0 {
		limit = cfg.Match.CandidateLimit
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}

func (s *Service) invalidateAdmirerCounts(ctx context.Context, userIDs ...string) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.InvalidateAdmirerCounts(ctx, userIDs...); err != nil {
		s.appCtx.Logger.Warn("admirer count invalidation failed", "users", userIDs, "err", err)
	}
}
