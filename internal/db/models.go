package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileStatus is the single moderation state of a profile.
// Banned dominates every other state and is terminal.
type ProfileStatus string

const (
	StatusPending  ProfileStatus = "pending"
	StatusApproved ProfileStatus = "approved"
	StatusRejected ProfileStatus = "rejected"
	StatusBanned   ProfileStatus = "banned"
)

// PublicFields are the profile attributes other users can see.
// Profile embeds them twice: the live copy and the approved_* snapshot.
type PublicFields struct {
	Nickname        string   `gorm:"size:50"`
	PhotoURLs       []string `gorm:"serializer:json;type:text"`
	College         string   `gorm:"size:8"`
	YearLevel       int      `gorm:"not null;default:0"`
	Hobbies         []string `gorm:"serializer:json;type:text"`
	Description     string   `gorm:"size:500"`
	Gender          string   `gorm:"size:16"`
	PreferredGender string   `gorm:"size:16"`
}

// Profile is one row per user; UserID is owned by the identity provider.
//
// Indexes:
//   - idx_profiles_status_user(status, user_id)
//     Serves candidate selection (approved pool ordered by user id).
type Profile struct {
	UserID    string `gorm:"primaryKey;size:64;index:idx_profiles_status_user,priority:2"`
	EmailHash string `gorm:"size:64;index"`

	PublicFields `gorm:"embedded"`
	LookingFor   string `gorm:"size:16"`

	Status          ProfileStatus `gorm:"size:16;not null;index:idx_profiles_status_user,priority:1"`
	RejectReason    string        `gorm:"size:255"`
	TermsAcceptedAt *time.Time
	AgeConfirmedAt  *time.Time
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
	ReviewedBy      *string `gorm:"size:64"`

	Approved   PublicFields `gorm:"embedded;embeddedPrefix:approved_"`
	SnapshotAt *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (p *Profile) IsBanned() bool { return p.Status == StatusBanned }

// Visible reports whether other users may see the profile as a candidate.
func (p *Profile) Visible() bool { return p.Status == StatusApproved }

// HasSnapshot reports whether an approved_* copy was ever taken.
func (p *Profile) HasSnapshot() bool { return p.SnapshotAt != nil }

type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Swipe is a directional decision of swiper on swiped.
//
// Composite PK: (SwiperID, SwipedID)
//   - At most one row per ordered pair; a second insert is a no-op.
//
// Indexes:
//   - idx_swipes_swiped_direction_created(swiped_id, direction, created_at DESC)
//     Serves reciprocity checks and the admirers list.
type Swipe struct {
	SwiperID  string    `gorm:"primaryKey;size:64"`
	SwipedID  string    `gorm:"primaryKey;size:64;index:idx_swipes_swiped_direction_created,priority:1"`
	Direction Direction `gorm:"size:8;not null;index:idx_swipes_swiped_direction_created,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_swipes_swiped_direction_created,priority:3,sort:desc"`
}

// Match is an undirected pairing stored as a sorted pair (User1ID < User2ID).
// idx_matches_pair is unique, so concurrent creators converge on one row.
type Match struct {
	ID                 string `gorm:"primaryKey;size:36"`
	User1ID            string `gorm:"size:64;not null;uniqueIndex:idx_matches_pair,priority:1"`
	User2ID            string `gorm:"size:64;not null;uniqueIndex:idx_matches_pair,priority:2;index"`
	Mission1ID         string `gorm:"size:8;not null"`
	Mission2ID         string `gorm:"size:8;not null"`
	Mission3ID         string `gorm:"size:8;not null"`
	MissionNumber      int    `gorm:"not null"`
	MissionCompleted   bool   `gorm:"not null"`
	MissionCompletedAt *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime"`
}

func (m *Match) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Involves reports whether userID is one of the pair.
func (m *Match) Involves(userID string) bool {
	return userID != "" && (m.User1ID == userID || m.User2ID == userID)
}

// Partner returns the other side of the pair for userID.
func (m *Match) Partner(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

func (m *Match) MissionIDs() []string {
	return []string{m.Mission1ID, m.Mission2ID, m.Mission3ID}
}

// SortedPair orders two user ids the way matches store them.
func SortedPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	MatchID   string    `gorm:"size:36;not null;index:idx_messages_match_created,priority:1"`
	SenderID  string    `gorm:"size:64;not null"`
	Content   string    `gorm:"size:1000;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_messages_match_created,priority:2"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type NotificationType string

const (
	NotificationLike  NotificationType = "like"
	NotificationMatch NotificationType = "match"
)

// Notification is unique per (recipient, origin, type) so retries never duplicate it.
type Notification struct {
	ID          string           `gorm:"primaryKey;size:36"`
	RecipientID string           `gorm:"size:64;not null;uniqueIndex:idx_notifications_unique,priority:1"`
	OriginID    string           `gorm:"size:64;not null;uniqueIndex:idx_notifications_unique,priority:2"`
	Type        NotificationType `gorm:"size:8;not null;uniqueIndex:idx_notifications_unique,priority:3"`
	IsRead      bool             `gorm:"not null"`
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

type Report struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ReporterID string    `gorm:"size:64;not null;index"`
	ReportedID string    `gorm:"size:64;not null;index"`
	Reason     string    `gorm:"size:100;not null"`
	Details    string    `gorm:"size:500"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

func (r *Report) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AuditLogEntry is append-only; nothing updates or deletes it.
type AuditLogEntry struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	EventType string         `gorm:"size:48;not null;index"`
	ActorID   *string        `gorm:"size:64;index"`
	TargetID  *string        `gorm:"size:64;index"`
	Details   map[string]any `gorm:"serializer:json;type:text"`
	IP        *string        `gorm:"size:45"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index"`
}

func (AuditLogEntry) TableName() string {
	return "audit_log"
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&Profile{},
		&Swipe{},
		&Match{},
		&Message{},
		&Notification{},
		&Report{},
		&AuditLogEntry{},
	}
}
