// Package moderation is the profile status state machine.
//
//	(none)   → pending                  first submission
//	approved → pending                  owner edit, approved_* snapshot taken first
//	rejected → pending, pending → pending owner edit
//	pending  → approved | rejected      admin review
//	*        → banned                   admin ban, terminal
package moderation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oggyb/campus-match/internal/contentguard"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
)

const (
	MaxPhotos         = 2
	MaxDescription    = 500
	MaxHobbies        = 10
	MaxHobbyLength    = 30
	MaxRejectReason   = 255
	nicknamePatternRx = `^[\p{L}\p{N} _'\-]{2,50}$`
)

var nicknamePattern = regexp.MustCompile(nicknamePatternRx)

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to db.ProfileStatus) bool {
	if from == db.StatusBanned {
		return false
	}
	switch to {
	case db.StatusBanned:
		return true
	case db.StatusPending:
		return from == "" || from == db.StatusPending || from == db.StatusApproved || from == db.StatusRejected
	case db.StatusApproved, db.StatusRejected:
		return from == db.StatusPending
	}
	return false
}

// Submission is the owner's profile form.
type Submission struct {
	Nickname        string
	PhotoURLs       []string
	College         string
	YearLevel       int
	Hobbies         []string
	Description     string
	Gender          string
	PreferredGender string
	LookingFor      string
	AgeConfirmed    bool
	TermsAccepted   bool
}

// Normalize trims free text and drops empty list items.
func (s Submission) Normalize() Submission {
	s.Nickname = strings.TrimSpace(s.Nickname)
	s.Description = strings.TrimSpace(s.Description)
	s.College = strings.TrimSpace(s.College)
	s.Gender = strings.TrimSpace(s.Gender)
	s.PreferredGender = strings.TrimSpace(s.PreferredGender)
	s.LookingFor = strings.TrimSpace(s.LookingFor)
	s.PhotoURLs = compact(s.PhotoURLs)
	s.Hobbies = compact(s.Hobbies)
	return s
}

// GuardFields lists the free text of s in the order it is checked.
func (s Submission) GuardFields() []contentguard.Field {
	fields := []contentguard.Field{
		{Name: "nickname", Label: "Nickname", Text: s.Nickname},
		{Name: "description", Label: "Description", Text: s.Description},
	}
	for _, h := range s.Hobbies {
		fields = append(fields, contentguard.Field{Name: "hobbies", Label: "Hobbies", Text: h})
	}
	return fields
}

// Validate checks the structural rules of a submission. existing may be nil.
// Content Guard checks are separate (see GuardFields).
func Validate(s Submission, existing *db.Profile, emailVerified bool) error {
	switch {
	case !emailVerified:
		return svcErr.Validation("email", "Verify your email address before submitting a profile")
	case len(s.PhotoURLs) == 0:
		return svcErr.Validation("photos", "At least one photo is required")
	case len(s.PhotoURLs) > MaxPhotos:
		return svcErr.Validation("photos", "At most 2 photos are allowed")
	case !s.AgeConfirmed:
		return svcErr.Validation("age_confirmed", "You must confirm you are at least 18 years old")
	case !s.TermsAccepted && (existing == nil || existing.TermsAcceptedAt == nil):
		return svcErr.Validation("terms_accepted", "You must accept the terms of service")
	case !nicknamePattern.MatchString(s.Nickname):
		return svcErr.Validation("nickname",
			"Nickname must be 2-50 characters using letters, numbers, spaces, hyphens, underscores or apostrophes")
	case utf8.RuneCountInString(s.Description) > MaxDescription:
		return svcErr.Validation("description", "Description must be at most 500 characters")
	case !db.ValidCollege(s.College):
		return svcErr.Validation("college", "Select a valid college")
	case s.YearLevel < db.MinYearLevel || s.YearLevel > db.MaxYearLevel:
		return svcErr.Validation("year_level", "Year level must be between 1 and 6")
	case s.Gender != "" && !db.ValidGender(s.Gender):
		return svcErr.Validation("gender", "Select a valid gender")
	case s.PreferredGender != "" && !db.ValidPreference(s.PreferredGender):
		return svcErr.Validation("preferred_gender", "Select a valid preferred gender")
	case s.LookingFor != "" && !db.ValidLookingFor(s.LookingFor):
		return svcErr.Validation("looking_for", "Select what you are looking for")
	case len(s.Hobbies) > MaxHobbies:
		return svcErr.Validation("hobbies", "At most 10 hobbies are allowed")
	}
	for _, h := range s.Hobbies {
		if utf8.RuneCountInString(h) > MaxHobbyLength {
			return svcErr.Validation("hobbies", "Each hobby must be at most 30 characters")
		}
	}
	return nil
}

// Owner identifies who submits and the hashed email to store.
type Owner struct {
	UserID    string
	EmailHash string
}

// Apply produces the profile row that results from the owner submitting s.
//
// Behavior:
//   - No existing row → a new pending profile.
//   - Existing approved → current public fields are copied into approved_*
//     before the edit is applied.
//   - Existing pending/rejected → approved_* is left as is.
//   - Existing banned → ModerationConflict.
//   - The result is always pending, whatever the input.
func Apply(existing *db.Profile, s Submission, owner Owner, now time.Time) (*db.Profile, error) {
	var p db.Profile
	if existing != nil {
		if !CanTransition(existing.Status, db.StatusPending) {
			return nil, svcErr.ModerationConflict("this account has been banned")
		}
		p = *existing
	} else {
		p.UserID = owner.UserID
	}

	if p.Status == db.StatusApproved {
		p.Approved = clonePublic(p.PublicFields)
		snap := now
		p.SnapshotAt = &snap
	}

	p.PublicFields = db.PublicFields{
		Nickname:        s.Nickname,
		PhotoURLs:       append([]string(nil), s.PhotoURLs...),
		College:         s.College,
		YearLevel:       s.YearLevel,
		Hobbies:         append([]string{}, s.Hobbies...),
		Description:     s.Description,
		Gender:          s.Gender,
		PreferredGender: s.PreferredGender,
	}
	p.LookingFor = s.LookingFor
	if owner.EmailHash != "" {
		p.EmailHash = owner.EmailHash
	}

	if s.TermsAccepted && p.TermsAcceptedAt == nil {
		t := now
		p.TermsAcceptedAt = &t
	}
	if s.AgeConfirmed && p.AgeConfirmedAt == nil {
		t := now
		p.AgeConfirmedAt = &t
	}

	p.Status = db.StatusPending
	p.SubmittedAt = now
	p.RejectReason = ""
	return &p, nil
}

// WireStatus is the status shown to clients: banned reads as rejected.
func WireStatus(p *db.Profile) string {
	if p.IsBanned() {
		return string(db.StatusRejected)
	}
	return string(p.Status)
}

// HeaderFields picks what a chat partner may see of p.
//
// Behavior:
//   - approved → live public fields.
//   - pending/rejected with a snapshot → approved_* snapshot.
//   - banned, or never approved → hidden (ok = false).
func HeaderFields(p *db.Profile) (db.PublicFields, bool) {
	switch {
	case p == nil || p.IsBanned():
		return db.PublicFields{}, false
	case p.Status == db.StatusApproved:
		return p.PublicFields, true
	case p.HasSnapshot():
		return p.Approved, true
	default:
		return db.PublicFields{}, false
	}
}

func clonePublic(f db.PublicFields) db.PublicFields {
	f.PhotoURLs = append([]string(nil), f.PhotoURLs...)
	f.Hobbies = append([]string(nil), f.Hobbies...)
	return f
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// PublicProfile is what other users see of a profile.
type PublicProfile struct {
	UserID      string   `json:"user_id"`
	Nickname    string   `json:"nickname"`
	PhotoURLs   []string `json:"photo_urls"`
	College     string   `json:"college"`
	YearLevel   int      `json:"year_level"`
	Hobbies     []string `json:"hobbies"`
	Description string   `json:"description"`
	Gender      string   `json:"gender,omitempty"`
	LookingFor  string   `json:"looking_for,omitempty"`
}

// PublicView renders f as seen by other users.
func PublicView(userID string, f db.PublicFields, lookingFor string) PublicProfile {
	return PublicProfile{
		UserID:      userID,
		Nickname:    f.Nickname,
		PhotoURLs:   append([]string{}, f.PhotoURLs...),
		College:     f.College,
		YearLevel:   f.YearLevel,
		Hobbies:     append([]string{}, f.Hobbies...),
		Description: f.Description,
		Gender:      f.Gender,
		LookingFor:  lookingFor,
	}
}

// CanBrowse reports whether p may see candidates and swipe: approved now, or
// previously approved and waiting on re-review of an edit.
func CanBrowse(p *db.Profile) bool {
	if p == nil || p.IsBanned() {
		return false
	}
	return p.Status == db.StatusApproved || p.HasSnapshot()
}
