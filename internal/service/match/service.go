package match

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/contentguard"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/mission"
	"github.com/oggyb/campus-match/internal/moderation"
	"github.com/oggyb/campus-match/internal/ratelimit"
	"github.com/oggyb/campus-match/internal/repository"
)

// MaxMessageLength is counted in runes after sanitizing.
const MaxMessageLength = 1000

// Service implements matches, their missions and the chat between the pair.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
}

// NewMatchService creates a new Match service with dependencies from AppContext.
func NewMatchService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
	}
}

type MissionView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// MatchView is one match as seen by one of its users.
type MatchView struct {
	ID               string                    `json:"id"`
	PartnerID        string                    `json:"partner_id"`
	Partner          *moderation.PublicProfile `json:"partner,omitempty"` // nil when hidden
	Missions         []MissionView             `json:"missions"`
	MissionNumber    int                       `json:"mission_number"`
	MissionCompleted bool                      `json:"mission_completed"`
	CompletedAtMs    int64                     `json:"completed_at_ms,omitempty"`
	CreatedAtMs      int64                     `json:"created_at_ms"`
}

func viewOf(m *db.Match, viewer string, partner *db.Profile) MatchView {
	v := MatchView{
		ID:               m.ID,
		PartnerID:        m.Partner(viewer),
		MissionNumber:    m.MissionNumber,
		MissionCompleted: m.MissionCompleted,
		CreatedAtMs:      m.CreatedAt.UnixMilli(),
	}
	if m.MissionCompletedAt != nil {
		v.CompletedAtMs = m.MissionCompletedAt.UnixMilli()
	}
	for i, id := range m.MissionIDs() {
		ms, _ := mission.Lookup(id)
		v.Missions = append(v.Missions, MissionView{
			ID:    id,
			Title: ms.Title,
			Done:  m.MissionCompleted || i+1 < m.MissionNumber,
		})
	}
	if f, ok := moderation.HeaderFields(partner); ok {
		pv := moderation.PublicView(v.PartnerID, f, partner.LookingFor)
		v.Partner = &pv
	}
	return v
}

type ListMatchesRequest struct{}

type ListMatchesResponse struct {
	Matches []MatchView `json:"matches"`
}

// ListMatches returns the caller's matches, newest first, with the partner's
// header view and mission checklist.
func (s *Service) ListMatches(ctx context.Context, _ *ListMatchesRequest) (*ListMatchesResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListMatches called", "user", caller.UserID)

	matches, err := s.matchRepo.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Persistence("list matches", err)
	}
	partnerIDs := make([]string, len(matches))
	for i := range matches {
		partnerIDs[i] = matches[i].Partner(caller.UserID)
	}
	partners, err := s.profileRepo.ListByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, svcErr.Persistence("load partners", err)
	}

	resp := &ListMatchesResponse{Matches: make([]MatchView, 0, len(matches))}
	for i := range matches {
		m := &matches[i]
		resp.Matches = append(resp.Matches, viewOf(m, caller.UserID, partners[m.Partner(caller.UserID)]))
	}
	return resp, nil
}

type AdvanceMissionRequest struct {
	MatchID string `json:"match_id"`
}

// AdvanceMission moves the shared mission checklist of a match forward.
//
// Behavior:
//   - Either user of the match may advance; anyone else gets PermissionDenied.
//   - mission_number 1 → 2 → 3 → completed; never backwards.
//   - Advancing a completed match is a no-op returning the current state.
//
// Example:
//
//	svc.AdvanceMission(ctx, &AdvanceMissionRequest{MatchID: "..."})
func (s *Service) AdvanceMission(ctx context.Context, req *AdvanceMissionRequest) (*MatchView, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("AdvanceMission called", "user", caller.UserID, "match", req.MatchID)

	if _, err := s.participantMatch(ctx, caller.UserID, req.MatchID); err != nil {
		return nil, err
	}

	advanced, err := s.matchRepo.AdvanceMission(ctx, req.MatchID, s.appCtx.Now().UTC())
	if err != nil {
		return nil, svcErr.Persistence("advance mission", err)
	}

	m, err := s.matchRepo.Get(ctx, req.MatchID)
	if err != nil {
		return nil, svcErr.Persistence("reload match", err)
	}
	partner, err := s.profileRepo.Find(ctx, m.Partner(caller.UserID))
	if err != nil {
		return nil, svcErr.Persistence("load partner", err)
	}

	view := viewOf(m, caller.UserID, partner)
	if advanced {
		s.appCtx.Logger.Info("mission advanced", "match", m.ID, "number", m.MissionNumber, "completed", m.MissionCompleted)
		s.appCtx.Publish(ctx, events.New(events.TableMatches, events.OpUpdate, m.ID, m, m.User1ID, m.User2ID))
	}
	return &view, nil
}

type SendMessageRequest struct {
	MatchID string `json:"match_id"`
	Content string `json:"content"`
}

type MessageView struct {
	ID          string `json:"id"`
	MatchID     string `json:"match_id"`
	SenderID    string `json:"sender_id"`
	Content     string `json:"content"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

func messageView(m *db.Message) MessageView {
	return MessageView{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		CreatedAtMs: m.CreatedAt.UnixMilli(),
	}
}

// SendMessage posts a chat message into a match.
//
// Behavior:
//   - Sender must be one of the pair and the partner must not be banned.
//   - Gated by the message rate limit class, keyed on the sender.
//   - Content is trimmed, stripped of control characters, 1..1000 runes,
//     and must pass the content guard.
func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessageView, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("SendMessage called", "user", caller.UserID, "match", req.MatchID)

	m, err := s.participantMatch(ctx, caller.UserID, req.MatchID)
	if err != nil {
		return nil, err
	}

	if err := s.appCtx.Limiter.Enforce(ctx, ratelimit.ClassMessage, caller.UserID); err != nil {
		return nil, err
	}

	content := SanitizeMessage(req.Content)
	switch n := utf8.RuneCountInString(content); {
	case n == 0:
		return nil, svcErr.Validation("content", "Message cannot be empty")
	case n > MaxMessageLength:
		return nil, svcErr.Validation("content", "Message must be at most 1000 characters")
	}
	if err := s.appCtx.CheckContent(ctx, caller.UserID, []contentguard.Field{
		{Name: "content", Label: "Message", Text: content},
	}); err != nil {
		return nil, err
	}

	banned, err := s.profileRepo.IsBanned(ctx, m.Partner(caller.UserID))
	if err != nil {
		return nil, svcErr.Persistence("check partner", err)
	}
	if banned {
		return nil, svcErr.ModerationConflict("you can no longer message this user")
	}

	msg := &db.Message{MatchID: m.ID, SenderID: caller.UserID, Content: content}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, svcErr.Persistence("create message", err)
	}

	view := messageView(msg)
	s.appCtx.Publish(ctx, events.New(events.TableMessages, events.OpInsert, msg.ID, view, m.User1ID, m.User2ID).ForMatch(m.ID))
	return &view, nil
}

type ListMessagesRequest struct {
	MatchID string `json:"match_id"`
}

type ListMessagesResponse struct {
	Messages []MessageView `json:"messages"`
}

// ListMessages returns the conversation of a match, oldest first.
func (s *Service) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.participantMatch(ctx, caller.UserID, req.MatchID); err != nil {
		return nil, err
	}

	msgs, err := s.messageRepo.ListByMatch(ctx, req.MatchID)
	if err != nil {
		return nil, svcErr.Persistence("list messages", err)
	}
	return &ListMessagesResponse{Messages: MessageViews(msgs)}, nil
}

// MessageViews converts rows for the wire.
func MessageViews(msgs []db.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageView(&msgs[i]))
	}
	return out
}

type GetMatchHeaderRequest struct {
	MatchID string `json:"match_id"`
}

// GetMatchHeader returns what the chat header shows about the partner:
// live fields when approved, the approved_* snapshot while an edit is under
// review, nothing when banned or never approved.
func (s *Service) GetMatchHeader(ctx context.Context, req *GetMatchHeaderRequest) (*MatchView, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.participantMatch(ctx, caller.UserID, req.MatchID)
	if err != nil {
		return nil, err
	}
	partner, err := s.profileRepo.Find(ctx, m.Partner(caller.UserID))
	if err != nil {
		return nil, svcErr.Persistence("load partner", err)
	}
	view := viewOf(m, caller.UserID, partner)
	return &view, nil
}

func (s *Service) participantMatch(ctx context.Context, userID, matchID string) (*db.Match, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, svcErr.Validation("match_id", "match_id is required")
	}
	m, err := s.matchRepo.Get(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("match not found")
	}
	if err != nil {
		return nil, svcErr.Persistence("load match", err)
	}
	if !m.Involves(userID) {
		return nil, svcErr.PermissionDenied("you are not part of this match")
	}
	return m, nil
}

// SanitizeMessage trims text and drops control characters other than newlines.
func SanitizeMessage(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
